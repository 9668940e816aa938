package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/detect"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/entity"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/port"
	"go.uber.org/zap"
)

// Sampler decodes a bounded, evenly spaced frame sequence by piping rawvideo
// RGB24 out of an ffmpeg child process. The select filter skips frames inside
// the decoder and -frames:v stops the process once the cap is reached, so
// decode work stays bounded regardless of input length.
type Sampler struct {
	logger *zap.Logger
}

func NewSampler(logger *zap.Logger) *Sampler {
	return &Sampler{logger: logger}
}

func (s *Sampler) Open(ctx context.Context, videoPath string, opts port.SampleOptions) (port.FrameStream, *port.VideoInfo, error) {
	info, err := Probe(ctx, videoPath)
	if err != nil {
		return nil, nil, err
	}

	interval := opts.Interval
	if interval < 1 {
		interval = 1
	}
	maxFrames := opts.MaxFrames
	if maxFrames < 1 {
		maxFrames = 1
	}

	// The child is tied to ctx: cancellation or timeout kills the decoder
	// mid-stream instead of letting it run to completion.
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-nostdin",
		"-v", "error",
		"-i", videoPath,
		"-vf", formatSelectFilter(interval),
		"-fps_mode", "vfr",
		"-frames:v", fmt.Sprintf("%d", maxFrames),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, detect.Wrap(detect.KindUnreadableVideo, "start ffmpeg", err)
	}

	s.logger.Debug("decode context opened",
		zap.String("video", videoPath),
		zap.Int("interval", interval),
		zap.Int("max_frames", maxFrames),
	)

	return &frameStream{
		cmd:       cmd,
		out:       stdout,
		stderr:    &stderr,
		width:     info.Width,
		height:    info.Height,
		fps:       info.FPS,
		interval:  interval,
		maxFrames: maxFrames,
	}, info, nil
}

type frameStream struct {
	cmd       *exec.Cmd
	out       io.ReadCloser
	stderr    *bytes.Buffer
	width     int
	height    int
	fps       float64
	interval  int
	maxFrames int

	next      int // index of the next frame to yield
	closeOnce sync.Once
	closeErr  error
}

func (fs *frameStream) Next(ctx context.Context) (*entity.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fs.next >= fs.maxFrames {
		return nil, io.EOF
	}

	buf := make([]byte, fs.width*fs.height*3)
	if _, err := io.ReadFull(fs.out, buf); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read decoded frame: %w", err)
	}

	frame := &entity.Frame{
		Index:  fs.next,
		Width:  fs.width,
		Height: fs.height,
		Pixels: buf,
	}
	if fs.fps > 0 {
		frame.Timestamp = float64(fs.next*fs.interval) / fs.fps
	}
	fs.next++
	return frame, nil
}

// Close releases the decode context. Idempotent; safe after partial reads,
// errors or abandonment.
func (fs *frameStream) Close() error {
	fs.closeOnce.Do(func() {
		fs.out.Close()
		if fs.cmd.Process != nil {
			_ = fs.cmd.Process.Kill()
		}
		// Reap the child; the exit status is irrelevant once we are done
		// with the stream (EOF, cap hit, error or abandonment).
		_ = fs.cmd.Wait()
	})
	return fs.closeErr
}
