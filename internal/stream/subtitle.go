package stream

import (
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
)

var ErrBadSubtitlePath = errors.New("invalid subtitle path")

// subtitleContentTypes maps subtitle extensions to media types.
var subtitleContentTypes = map[string]string{
	".srt": "application/x-subrip",
	".vtt": "text/vtt",
	".ass": "text/x-ssa",
	".ssa": "text/x-ssa",
	".sup": "application/octet-stream",
	".idx": "text/plain",
	".sub": "text/plain",
}

// SubtitleContentType returns the media type for a subtitle file path.
func SubtitleContentType(path string) string {
	if ct, ok := subtitleContentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// EncodeSubtitlePath packs an absolute subtitle path into a URL-safe token.
// Hex keeps the route free of escaping edge cases across proxies.
func EncodeSubtitlePath(path string) string {
	return hex.EncodeToString([]byte(path))
}

// DecodeSubtitlePath reverses EncodeSubtitlePath.
func DecodeSubtitlePath(token string) (string, error) {
	raw, err := hex.DecodeString(strings.ToLower(token))
	if err != nil {
		return "", ErrBadSubtitlePath
	}
	return string(raw), nil
}
