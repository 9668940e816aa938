// Package httpapi is the upload-facing edge of the service: it accepts
// multipart video uploads, enforces the size cap before the pipeline runs,
// invokes the core exactly once per request, and forwards its JSON result or
// mapped error to the client.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/detect"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/entity"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/port"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/usecase"
)

type ServerConfig struct {
	Port           int
	MaxUploadBytes int64
	MaxConcurrent  int
	MaxRetries     int
}

type Server struct {
	engine   *gin.Engine
	analyzer usecase.Analyzer
	repo     port.AnalysisRepository
	model    port.Model
	logger   *zap.Logger
	cfg      ServerConfig
	sem      chan struct{}
}

func NewServer(
	analyzer usecase.Analyzer,
	repo port.AnalysisRepository,
	model port.Model,
	logger *zap.Logger,
	cfg ServerConfig,
) *Server {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}

	s := &Server{
		analyzer: analyzer,
		repo:     repo,
		model:    model,
		logger:   logger,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())
	engine.MaxMultipartMemory = 8 << 20

	api := engine.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/predict", s.handlePredict)
		api.GET("/analyses/:id", s.handleGetAnalysis)
	}

	s.engine = engine
	return s
}

// Start runs the HTTP server in the background and returns it for shutdown.
func (s *Server) Start() *http.Server {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.engine,
	}

	go func() {
		s.logger.Info("http server starting", zap.Int("port", s.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	return srv
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

type predictResponse struct {
	AnalysisID string                   `json:"analysis_id"`
	Prediction entity.Label             `json:"prediction"`
	Confidence float64                  `json:"confidence"`
	Breakdown  []entity.BreakdownMarker `json:"breakdown"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "TrueFrame AI Engine is running",
		"model":  s.model.Fingerprint(),
	})
}

func (s *Server) handlePredict(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "no file part in the request"})
		return
	}
	if file.Filename == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "no file selected"})
		return
	}
	if file.Size == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: detect.KindUnreadableVideo.Message()})
		return
	}
	if file.Size > s.cfg.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "file exceeds the upload size limit"})
		return
	}

	// Bounded concurrency: refuse rather than queue when saturated.
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "server is busy, please retry"})
		return
	}

	log := s.logger.With(zap.String("filename", file.Filename))
	log.Info("received file for prediction", zap.Int64("size", file.Size))

	// The upload is owned by this one request and deleted unconditionally
	// when it exits.
	workDir, err := os.MkdirTemp("", "trueframe-upload-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not store upload"})
		return
	}
	defer os.RemoveAll(workDir)

	videoPath := filepath.Join(workDir, "upload"+filepath.Ext(filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, videoPath); err != nil {
		log.Error("failed to save upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not store upload"})
		return
	}

	if !sniffVideo(videoPath) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: detect.KindUnreadableVideo.Message()})
		return
	}

	analysis := entity.NewAnalysis("", entity.SourceUpload, file.Filename, file.Size, s.cfg.MaxRetries)
	analysis.MarkProcessing()
	if err := s.repo.Create(c.Request.Context(), analysis); err != nil {
		log.Warn("failed to persist analysis record", zap.Error(err))
	}

	result, err := s.analyzer.Analyze(c.Request.Context(), videoPath)
	if err != nil {
		s.respondError(c, analysis, err, log)
		return
	}

	analysis.MarkCompleted(result.Verdict, result.FrameCount, result.Duration)
	if err := s.repo.Update(c.Request.Context(), analysis); err != nil {
		log.Warn("failed to update analysis record", zap.Error(err))
	}

	c.JSON(http.StatusOK, predictResponse{
		AnalysisID: analysis.ID.String(),
		Prediction: result.Verdict.Label,
		Confidence: result.Verdict.Confidence,
		Breakdown:  result.Verdict.Breakdown(),
	})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid analysis id"})
		return
	}

	analysis, err := s.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "analysis not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analysis_id": analysis.ID.String(),
		"status":      analysis.Status,
		"video":       analysis.VideoKey,
		"prediction":  analysis.Prediction,
		"confidence":  analysis.Confidence,
		"frame_count": analysis.FrameCount,
		"error":       analysis.ErrorMessage,
		"created_at":  analysis.CreatedAt.Format(time.RFC3339),
	})
}

// respondError maps a pipeline failure to its HTTP status class. Only the
// taxonomy kind and its short message cross the boundary.
func (s *Server) respondError(c *gin.Context, analysis *entity.Analysis, err error, log *zap.Logger) {
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful to write.
		analysis.MarkFailed("CANCELED", "request canceled")
		_ = s.repo.Update(context.Background(), analysis)
		c.Abort()
		return
	}

	kind, ok := detect.KindOf(err)
	if !ok {
		kind = detect.KindScoringFailed
	}
	log.Error("analysis failed", zap.String("kind", string(kind)), zap.Error(err))

	analysis.MarkFailed(string(kind), kind.Message())
	_ = s.repo.Update(context.Background(), analysis)

	status := http.StatusInternalServerError
	switch {
	case kind == detect.KindTimeout:
		status = http.StatusGatewayTimeout
	case kind == detect.KindScoringFailed:
		status = http.StatusServiceUnavailable
	case kind.ClientFault():
		status = http.StatusBadRequest
	}
	c.JSON(status, errorResponse{Error: kind.Message()})
}

// sniffVideo checks the upload's magic bytes before any decoding happens.
// filetype only needs the first 261 bytes.
func sniffVideo(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 261)
	n, _ := f.Read(head)
	return filetype.IsVideo(head[:n])
}
