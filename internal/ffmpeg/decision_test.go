package ffmpeg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func h264mp4() *MediaInfo {
	return &MediaInfo{
		Container:   "mov,mp4,m4a,3gp,3g2,mj2",
		BitrateKbps: 4500,
		Video:       &VideoStream{Codec: "h264", Width: 1920, Height: 1080, BitrateKbps: 4200},
		Audio:       []AudioStream{{Codec: "aac", Channels: 2}},
	}
}

func TestDecideDirectPlay(t *testing.T) {
	d := Decide(h264mp4(), DefaultCaps())
	assert.Equal(t, DirectPlay, d.Method)
	assert.Empty(t, d.Reasons)
	assert.False(t, d.TranscodeVideo)
	assert.False(t, d.TranscodeAudio)
}

func TestDecideRemuxContainerOnly(t *testing.T) {
	info := h264mp4()
	info.Container = "avi"
	d := Decide(info, DefaultCaps())
	assert.Equal(t, Remux, d.Method)
	assert.Equal(t, []TranscodeReason{ReasonContainerNotSupported}, d.Reasons)
	assert.False(t, d.TranscodeVideo)
	assert.False(t, d.TranscodeAudio)
}

func TestDecideTranscodeVideoCodec(t *testing.T) {
	info := h264mp4()
	info.Video.Codec = "mpeg2video"
	d := Decide(info, DefaultCaps())
	assert.Equal(t, Transcode, d.Method)
	assert.Contains(t, d.Reasons, ReasonVideoCodecNotSupported)
	assert.True(t, d.TranscodeVideo)
	assert.False(t, d.TranscodeAudio)
}

func TestDecideTranscodeAudioCodec(t *testing.T) {
	info := h264mp4()
	info.Audio[0].Codec = "dts"
	d := Decide(info, DefaultCaps())
	assert.Equal(t, Transcode, d.Method)
	assert.Equal(t, []TranscodeReason{ReasonAudioCodecNotSupported}, d.Reasons)
	assert.False(t, d.TranscodeVideo)
	assert.True(t, d.TranscodeAudio)
}

func TestDecideBitrateLimit(t *testing.T) {
	caps := DefaultCaps()
	caps.MaxBitrateKbps = 3000
	d := Decide(h264mp4(), caps)
	assert.Equal(t, Transcode, d.Method)
	assert.Contains(t, d.Reasons, ReasonVideoBitrateTooHigh)
}

func TestDecideBitrateFallsBackToContainerRate(t *testing.T) {
	info := h264mp4()
	info.Video.BitrateKbps = 0
	caps := DefaultCaps()
	caps.MaxBitrateKbps = 3000
	d := Decide(info, caps)
	assert.Contains(t, d.Reasons, ReasonVideoBitrateTooHigh)
}

func TestDecideResolutionLimitDeduplicated(t *testing.T) {
	info := h264mp4()
	info.Video.Width = 3840
	info.Video.Height = 2160
	caps := DefaultCaps()
	caps.MaxWidth = 1920
	caps.MaxHeight = 1080
	d := Decide(info, caps)
	assert.Equal(t, Transcode, d.Method)
	// Width and height both exceed the limit but yield one reason.
	count := 0
	for _, r := range d.Reasons {
		if r == ReasonVideoResolutionTooHigh {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDecideCompoundContainerName(t *testing.T) {
	info := h264mp4()
	info.Container = "matroska,webm"
	d := Decide(info, DefaultCaps())
	assert.Equal(t, DirectPlay, d.Method)
}

func TestDecideCaseInsensitiveCodec(t *testing.T) {
	info := h264mp4()
	info.Video.Codec = "H264"
	d := Decide(info, DefaultCaps())
	assert.Equal(t, DirectPlay, d.Method)
}

func TestDecideMultipleReasons(t *testing.T) {
	info := h264mp4()
	info.Container = "avi"
	info.Video.Codec = "mpeg4"
	info.Audio[0].Codec = "wmav2"
	d := Decide(info, DefaultCaps())
	assert.Equal(t, Transcode, d.Method)
	assert.Len(t, d.Reasons, 3)
}

func TestDecideFlagsOnTheWire(t *testing.T) {
	info := h264mp4()
	info.Container = "avi"
	info.Video.Codec = "mpeg2video"
	d := Decide(info, DefaultCaps())

	// Clients key off the per-track flags, so they must always be present
	// in the serialized decision, false included.
	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.JSONEq(t, "true", string(fields["transcode_video"]))
	assert.JSONEq(t, "false", string(fields["transcode_audio"]))
}

func TestDecideNoStreams(t *testing.T) {
	info := &MediaInfo{Container: "mp4"}
	d := Decide(info, DefaultCaps())
	assert.Equal(t, DirectPlay, d.Method)
}
