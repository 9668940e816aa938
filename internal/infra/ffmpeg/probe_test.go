package ffmpeg

import (
	"testing"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/detect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	out := []byte(`{
		"streams": [{"codec_type":"video","width":1920,"height":1080,"r_frame_rate":"30000/1001","nb_frames":"300"}],
		"format": {"duration":"10.010000"}
	}`)

	info, err := parseProbeOutput(out)
	require.NoError(t, err)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.InDelta(t, 29.97, info.FPS, 0.01)
	assert.InDelta(t, 10.01, info.DurationSec, 1e-6)
	assert.Equal(t, 300, info.FrameEstimate)
}

func TestParseProbeOutputEstimatesFrameCount(t *testing.T) {
	// Some containers omit nb_frames; fall back to fps * duration.
	out := []byte(`{
		"streams": [{"codec_type":"video","width":640,"height":480,"r_frame_rate":"25/1","nb_frames":""}],
		"format": {"duration":"4.0"}
	}`)

	info, err := parseProbeOutput(out)
	require.NoError(t, err)
	assert.Equal(t, 100, info.FrameEstimate)
}

func TestParseProbeOutputNoVideoStream(t *testing.T) {
	_, err := parseProbeOutput([]byte(`{"streams": [], "format": {"duration":"3.0"}}`))
	assert.True(t, detect.IsKind(err, detect.KindUnreadableVideo))
}

func TestParseProbeOutputInvalidDimensions(t *testing.T) {
	out := []byte(`{"streams": [{"codec_type":"video","width":0,"height":480}], "format": {}}`)
	_, err := parseProbeOutput(out)
	assert.True(t, detect.IsKind(err, detect.KindUnreadableVideo))
}

func TestParseProbeOutputGarbage(t *testing.T) {
	_, err := parseProbeOutput([]byte("not json at all"))
	assert.True(t, detect.IsKind(err, detect.KindUnreadableVideo))
}

func TestParseFrameRate(t *testing.T) {
	assert.InDelta(t, 25.0, parseFrameRate("25/1"), 1e-9)
	assert.InDelta(t, 29.97, parseFrameRate("30000/1001"), 0.01)
	assert.InDelta(t, 30.0, parseFrameRate("30"), 1e-9)
	assert.Zero(t, parseFrameRate("25/0"))
	assert.Zero(t, parseFrameRate("garbage"))
}

func TestFormatSelectFilter(t *testing.T) {
	assert.Equal(t, "select=1", formatSelectFilter(0))
	assert.Equal(t, "select=1", formatSelectFilter(1))
	assert.Equal(t, `select=not(mod(n\,30))`, formatSelectFilter(30))
}
