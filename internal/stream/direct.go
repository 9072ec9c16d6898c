package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrInvalidRange covers syntactically bad Range headers, including
	// multi-range requests, which are deliberately unsupported.
	ErrInvalidRange = errors.New("invalid range")
	// ErrUnsatisfiableRange means the start offset is past end of file.
	ErrUnsatisfiableRange = errors.New("range not satisfiable")
)

// ByteRange is a resolved, inclusive byte span within a file.
type ByteRange struct {
	Start int64
	End   int64
}

func (b ByteRange) Length() int64 { return b.End - b.Start + 1 }

// ParseRange resolves a single-range RFC 7233 header against a file size.
// Supported forms: "bytes=a-b", "bytes=a-", "bytes=-n" (final n bytes).
func ParseRange(header string, size int64) (ByteRange, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return ByteRange{}, ErrInvalidRange
	}
	if strings.Contains(spec, ",") {
		return ByteRange{}, ErrInvalidRange
	}

	startStr, endStr, found := strings.Cut(strings.TrimSpace(spec), "-")
	if !found {
		return ByteRange{}, ErrInvalidRange
	}

	// Suffix form: bytes=-n
	if startStr == "" {
		if endStr == "" {
			return ByteRange{}, ErrInvalidRange
		}
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return ByteRange{}, ErrInvalidRange
		}
		if n > size {
			n = size
		}
		return ByteRange{Start: size - n, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return ByteRange{}, ErrInvalidRange
	}
	if start >= size {
		return ByteRange{}, ErrUnsatisfiableRange
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return ByteRange{}, ErrInvalidRange
		}
		if end >= size {
			end = size - 1
		}
	}
	if start > end {
		return ByteRange{}, ErrInvalidRange
	}

	return ByteRange{Start: start, End: end}, nil
}

// videoContentTypes maps file extensions to media types served to players.
var videoContentTypes = map[string]string{
	".mp4": "video/mp4", ".m4v": "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".ts":   "video/mp2t", ".m2ts": "video/mp2t", ".mts": "video/mp2t",
	".mpg": "video/mpeg", ".mpeg": "video/mpeg", ".mpe": "video/mpeg",
	".mpv": "video/mpeg", ".vob": "video/mpeg",
	".ogv": "video/ogg",
	".wmv": "video/x-ms-wmv",
	".asf": "video/x-ms-asf",
	".flv": "video/x-flv", ".f4v": "video/x-flv",
	".3gp": "video/3gpp",
	".3g2": "video/3gpp2",
	".mxf": "application/mxf",
}

// ContentTypeFor returns the media type for a video file path.
func ContentTypeFor(path string) string {
	if ct, ok := videoContentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ServeFileRange streams a file honoring a single-range request. Responses
// carry no-store caching and sniffing protections since media URLs embed
// stream tokens.
func ServeFileRange(w http.ResponseWriter, r *http.Request, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open media file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat media file: %w", err)
	}
	size := stat.Size()

	h := w.Header()
	h.Set("Content-Type", ContentTypeFor(path))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "no-referrer")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		_, err = io.Copy(w, file)
		return err
	}

	br, err := ParseRange(rangeHeader, size)
	if errors.Is(err, ErrUnsatisfiableRange) {
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return nil
	}

	if _, err := file.Seek(br.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek media file: %w", err)
	}

	h.Set("Content-Length", strconv.FormatInt(br.Length(), 10))
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.Start, br.End, size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}
	_, err = io.CopyN(w, file, br.Length())
	return err
}
