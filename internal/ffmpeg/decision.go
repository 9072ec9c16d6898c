package ffmpeg

import (
	"strings"
)

// PlayMethod is the outcome of the playback decision.
type PlayMethod string

const (
	DirectPlay PlayMethod = "direct_play"
	Remux      PlayMethod = "remux"
	Transcode  PlayMethod = "transcode"
)

// TranscodeReason names one incompatibility between media and client.
type TranscodeReason string

const (
	ReasonContainerNotSupported  TranscodeReason = "ContainerNotSupported"
	ReasonVideoCodecNotSupported TranscodeReason = "VideoCodecNotSupported"
	ReasonVideoBitrateTooHigh    TranscodeReason = "VideoBitrateTooHigh"
	ReasonVideoResolutionTooHigh TranscodeReason = "VideoResolutionTooHigh"
	ReasonAudioCodecNotSupported TranscodeReason = "AudioCodecNotSupported"
)

// ClientCaps describes what a client can play back directly. Zero-valued
// numeric limits mean unlimited.
type ClientCaps struct {
	Containers      []string `json:"containers"`
	VideoCodecs     []string `json:"video_codecs"`
	AudioCodecs     []string `json:"audio_codecs"`
	MaxBitrateKbps  int64    `json:"max_bitrate_kbps,omitempty"`
	MaxWidth        int      `json:"max_width,omitempty"`
	MaxHeight       int      `json:"max_height,omitempty"`
}

// DefaultCaps models a current browser with MSE support.
func DefaultCaps() ClientCaps {
	return ClientCaps{
		Containers:  []string{"mp4", "matroska", "webm", "mov"},
		VideoCodecs: []string{"h264", "hevc", "vp9", "av1"},
		AudioCodecs: []string{"aac", "mp3", "opus", "ac3", "eac3", "flac"},
	}
}

// PlayDecision is the full verdict for one media/client pair. The per-track
// flags tell the client which streams get re-encoded; a remux carries its
// container reason with both flags false.
type PlayDecision struct {
	Method         PlayMethod        `json:"method"`
	Reasons        []TranscodeReason `json:"reasons,omitempty"`
	TranscodeVideo bool              `json:"transcode_video"`
	TranscodeAudio bool              `json:"transcode_audio"`
}

// Decide compares probed media info against client capabilities.
//
// No reasons means direct play. Reasons that touch neither stream (only the
// container) mean remux; anything requiring a video or audio re-encode
// forces a transcode.
func Decide(info *MediaInfo, caps ClientCaps) PlayDecision {
	var reasons []TranscodeReason
	var transcodeVideo, transcodeAudio bool

	if !containerSupported(info.Container, caps.Containers) {
		reasons = append(reasons, ReasonContainerNotSupported)
	}

	if info.Video != nil {
		if !codecSupported(info.Video.Codec, caps.VideoCodecs) {
			reasons = append(reasons, ReasonVideoCodecNotSupported)
			transcodeVideo = true
		}
		if caps.MaxBitrateKbps > 0 {
			bitrate := info.Video.BitrateKbps
			if bitrate == 0 {
				bitrate = info.BitrateKbps
			}
			if bitrate > caps.MaxBitrateKbps {
				reasons = append(reasons, ReasonVideoBitrateTooHigh)
				transcodeVideo = true
			}
		}
		tooWide := caps.MaxWidth > 0 && info.Video.Width > caps.MaxWidth
		tooTall := caps.MaxHeight > 0 && info.Video.Height > caps.MaxHeight
		if tooWide || tooTall {
			reasons = append(reasons, ReasonVideoResolutionTooHigh)
			transcodeVideo = true
		}
	}

	if len(info.Audio) > 0 {
		if !codecSupported(info.Audio[0].Codec, caps.AudioCodecs) {
			reasons = append(reasons, ReasonAudioCodecNotSupported)
			transcodeAudio = true
		}
	}

	d := PlayDecision{
		Reasons:        reasons,
		TranscodeVideo: transcodeVideo,
		TranscodeAudio: transcodeAudio,
	}
	switch {
	case len(reasons) == 0:
		d.Method = DirectPlay
	case !transcodeVideo && !transcodeAudio:
		d.Method = Remux
	default:
		d.Method = Transcode
	}
	return d
}

// containerSupported matches by substring: ffprobe reports compound names
// like "matroska,webm" or "mov,mp4,m4a,3gp,3g2,mj2".
func containerSupported(container string, supported []string) bool {
	c := strings.ToLower(container)
	for _, s := range supported {
		if strings.Contains(c, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func codecSupported(codec string, supported []string) bool {
	for _, s := range supported {
		if strings.EqualFold(codec, s) {
			return true
		}
	}
	return false
}
