package ffmpeg

import (
	"log"
	"os/exec"
	"strings"
	"sync"
)

// HWAccelType identifies a hardware encoding backend.
type HWAccelType string

const (
	HWAccelNone         HWAccelType = "none"
	HWAccelNVENC        HWAccelType = "nvenc"
	HWAccelQSV          HWAccelType = "qsv"
	HWAccelVAAPI        HWAccelType = "vaapi"
	HWAccelVideoToolbox HWAccelType = "videotoolbox"
)

var hwEncoderNames = map[HWAccelType]string{
	HWAccelNVENC:        "h264_nvenc",
	HWAccelQSV:          "h264_qsv",
	HWAccelVAAPI:        "h264_vaapi",
	HWAccelVideoToolbox: "h264_videotoolbox",
}

// H264Encoder returns the ffmpeg encoder name for the backend, or libx264
// for software.
func (t HWAccelType) H264Encoder() string {
	if enc, ok := hwEncoderNames[t]; ok {
		return enc
	}
	return "libx264"
}

var (
	hwMu     sync.Mutex
	hwCached []HWAccelType
	hwProbed bool
)

// DetectHWAccels lists the hardware H.264 encoders the ffmpeg binary was
// built with. Cached after the first call; a missing binary yields an
// empty list rather than an error.
func DetectHWAccels(ffmpegPath string) []HWAccelType {
	hwMu.Lock()
	defer hwMu.Unlock()
	if hwProbed {
		return hwCached
	}
	hwProbed = true

	cmd := exec.Command(ffmpegPath, "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		log.Printf("[hwaccel] encoder probe failed: %v", err)
		return nil
	}
	encoderList := string(output)

	for _, t := range []HWAccelType{HWAccelNVENC, HWAccelQSV, HWAccelVAAPI, HWAccelVideoToolbox} {
		if strings.Contains(encoderList, hwEncoderNames[t]) {
			hwCached = append(hwCached, t)
		}
	}
	if len(hwCached) > 0 {
		log.Printf("[hwaccel] available backends: %v", hwCached)
	} else {
		log.Printf("[hwaccel] no hardware encoder available, using libx264")
	}
	return hwCached
}

// BestHWAccel picks the preferred backend from the detected set.
// NVENC wins over QSV, QSV over VAAPI, VAAPI over VideoToolbox.
func BestHWAccel(ffmpegPath string) HWAccelType {
	detected := DetectHWAccels(ffmpegPath)
	if len(detected) == 0 {
		return HWAccelNone
	}
	return detected[0]
}

// ResolveHWAccel maps a configured accel name to a backend, probing the
// binary when set to auto.
func ResolveHWAccel(configured, ffmpegPath string) HWAccelType {
	switch strings.ToLower(configured) {
	case "", "auto":
		return BestHWAccel(ffmpegPath)
	case "none", "off", "software":
		return HWAccelNone
	case "nvenc", "cuda":
		return HWAccelNVENC
	case "qsv":
		return HWAccelQSV
	case "vaapi":
		return HWAccelVAAPI
	case "videotoolbox":
		return HWAccelVideoToolbox
	default:
		log.Printf("[hwaccel] unknown accel type %q, using software", configured)
		return HWAccelNone
	}
}
