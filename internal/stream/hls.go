package stream

import (
	"os"
	"strings"
	"time"
)

// Poll windows for files ffmpeg has not written yet. The master playlist gets
// a longer window since it only appears after the first segment is encoded.
const (
	pollInterval  = 200 * time.Millisecond
	playlistPolls = 50
	segmentPolls  = 25
)

// ValidSessionFilename rejects anything that could escape the session dir.
func ValidSessionFilename(name string) bool {
	if name == "" {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return true
}

// HLSContentType maps session file names to their media type.
func HLSContentType(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".m3u8"):
		return "application/vnd.apple.mpegurl"
	case strings.HasSuffix(filename, ".m4s"), strings.HasSuffix(filename, ".mp4"):
		return "video/mp4"
	default:
		return "video/MP2T"
	}
}

// WaitForFile polls until the path exists and is non-empty, giving ffmpeg
// time to produce it. Returns false when the poll window elapses.
func WaitForFile(path string, polls int) bool {
	for i := 0; i < polls; i++ {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return true
		}
		time.Sleep(pollInterval)
	}
	return false
}

// WaitForPlaylist waits with the playlist-sized window.
func WaitForPlaylist(path string) bool { return WaitForFile(path, playlistPolls) }

// WaitForSegment waits with the segment-sized window.
func WaitForSegment(path string) bool { return WaitForFile(path, segmentPolls) }
