package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/detect"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/port"
)

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		NbFrames   string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe inspects the container with ffprobe. A container that cannot be parsed
// or has no video stream is an UnreadableVideo failure.
func Probe(ctx context.Context, videoPath string) (*port.VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type,width,height,r_frame_rate,nb_frames",
		"-show_entries", "format=duration",
		"-of", "json",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, detect.Wrap(detect.KindUnreadableVideo, "ffprobe failed", err)
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(out []byte) (*port.VideoInfo, error) {
	var po probeOutput
	if err := json.Unmarshal(out, &po); err != nil {
		return nil, detect.Wrap(detect.KindUnreadableVideo, "unparseable ffprobe output", err)
	}
	if len(po.Streams) == 0 {
		return nil, detect.New(detect.KindUnreadableVideo, "no video stream found")
	}

	s := po.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return nil, detect.New(detect.KindUnreadableVideo, "video stream has invalid dimensions")
	}

	info := &port.VideoInfo{
		Width:  s.Width,
		Height: s.Height,
		FPS:    parseFrameRate(s.RFrameRate),
	}
	if d, err := strconv.ParseFloat(strings.TrimSpace(po.Format.Duration), 64); err == nil {
		info.DurationSec = d
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s.NbFrames)); err == nil {
		info.FrameEstimate = n
	} else if info.FPS > 0 && info.DurationSec > 0 {
		info.FrameEstimate = int(info.FPS * info.DurationSec)
	}
	return info, nil
}

// parseFrameRate parses ffprobe's rational frame rate ("30000/1001", "25/1").
func parseFrameRate(r string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(r), "/")
	if !ok {
		f, _ := strconv.ParseFloat(r, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func formatSelectFilter(interval int) string {
	if interval <= 1 {
		return "select=1"
	}
	return fmt.Sprintf("select=not(mod(n\\,%d))", interval)
}
