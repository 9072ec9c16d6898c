package ffmpeg

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type FFprobe struct{ Path string }

func NewFFprobe(path string) *FFprobe { return &FFprobe{Path: path} }

// MediaInfo is the normalized shape of a probe: one container, at most one
// video stream (the first), every audio and subtitle stream.
type MediaInfo struct {
	Container    string           `json:"container"`
	DurationSecs float64          `json:"duration_secs"`
	BitrateKbps  int64            `json:"bitrate_kbps"`
	Video        *VideoStream     `json:"video,omitempty"`
	Audio        []AudioStream    `json:"audio"`
	Subtitles    []SubtitleStream `json:"subtitles"`
}

type VideoStream struct {
	Index       int     `json:"index"`
	Codec       string  `json:"codec"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	BitrateKbps int64   `json:"bitrate_kbps"`
	Framerate   float64 `json:"framerate"`
}

type AudioStream struct {
	Index     int    `json:"index"`
	Codec     string `json:"codec"`
	Channels  int    `json:"channels"`
	Language  string `json:"language,omitempty"`
	Title     string `json:"title,omitempty"`
	IsDefault bool   `json:"is_default"`
}

type SubtitleStream struct {
	Index     int    `json:"index"`
	Codec     string `json:"codec"`
	Language  string `json:"language,omitempty"`
	Title     string `json:"title,omitempty"`
	IsForced  bool   `json:"is_forced"`
	IsDefault bool   `json:"is_default"`
}

// Raw ffprobe JSON shapes.
type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
}

type probeStream struct {
	Index       int               `json:"index"`
	CodecType   string            `json:"codec_type"`
	CodecName   string            `json:"codec_name"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Channels    int               `json:"channels"`
	BitRate     string            `json:"bit_rate"`
	RFrameRate  string            `json:"r_frame_rate"`
	Tags        map[string]string `json:"tags"`
	Disposition map[string]int    `json:"disposition"`
}

// Probe runs ffprobe against the file and normalizes the result.
func (f *FFprobe) Probe(filePath string) (*MediaInfo, error) {
	cmd := exec.Command(f.Path, "-v", "quiet", "-print_format", "json",
		"-show_format", "-show_streams", filePath)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return ParseProbeOutput(output)
}

// ParseProbeOutput converts raw ffprobe JSON into MediaInfo.
func ParseProbeOutput(data []byte) (*MediaInfo, error) {
	var raw probeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &MediaInfo{Container: raw.Format.FormatName}
	info.DurationSecs, _ = strconv.ParseFloat(raw.Format.Duration, 64)
	if br, err := strconv.ParseInt(raw.Format.BitRate, 10, 64); err == nil {
		info.BitrateKbps = br / 1000
	}

	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if info.Video != nil {
				continue
			}
			vs := &VideoStream{
				Index:     s.Index,
				Codec:     s.CodecName,
				Width:     s.Width,
				Height:    s.Height,
				Framerate: parseFraction(s.RFrameRate),
			}
			if br, err := strconv.ParseInt(s.BitRate, 10, 64); err == nil {
				vs.BitrateKbps = br / 1000
			}
			info.Video = vs
		case "audio":
			info.Audio = append(info.Audio, AudioStream{
				Index:     s.Index,
				Codec:     s.CodecName,
				Channels:  s.Channels,
				Language:  s.Tags["language"],
				Title:     s.Tags["title"],
				IsDefault: s.Disposition["default"] == 1,
			})
		case "subtitle":
			info.Subtitles = append(info.Subtitles, SubtitleStream{
				Index:     s.Index,
				Codec:     s.CodecName,
				Language:  s.Tags["language"],
				Title:     s.Tags["title"],
				IsForced:  s.Disposition["forced"] == 1,
				IsDefault: s.Disposition["default"] == 1,
			})
		}
	}

	return info, nil
}

// parseFraction evaluates ffprobe rational strings like "24000/1001".
// Returns 0 for malformed input or a zero denominator.
func parseFraction(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	if !found {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
