package scanner

import (
	"os"
	"path/filepath"
	"strings"
)

// SidecarSubtitle describes an external subtitle file found next to a media file.
type SidecarSubtitle struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	Language string `json:"language,omitempty"`
	Forced   bool   `json:"forced"`
	SDH      bool   `json:"sdh"`
}

var subtitleExtensions = map[string]bool{
	".srt": true, ".sub": true, ".ass": true, ".ssa": true,
	".vtt": true, ".sup": true, ".idx": true,
}

// Common two-letter language codes seen in subtitle sidecar names. Three-letter
// markers are accepted wholesale since ISO 639-2 covers nearly every
// three-letter combination in practice.
var twoLetterLangs = map[string]bool{
	"en": true, "es": true, "fr": true, "de": true, "it": true,
	"pt": true, "ru": true, "ja": true, "zh": true, "ko": true,
	"nl": true, "sv": true, "no": true, "da": true, "fi": true,
	"pl": true, "cs": true, "hu": true, "tr": true, "ar": true,
	"he": true, "hi": true, "th": true, "vi": true, "id": true,
	"el": true, "ro": true, "uk": true, "bg": true, "hr": true,
}

// DiscoverSubtitles finds sidecar subtitle files for a media file: files in the
// same directory whose stem starts with the media file's stem. Dot-separated
// markers between the stem and the extension carry language and flags, e.g.
// "Movie.en.forced.srt".
func DiscoverSubtitles(mediaPath string) ([]SidecarSubtitle, error) {
	dir := filepath.Dir(mediaPath)
	stem := stemOf(mediaPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var subs []SidecarSubtitle
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !subtitleExtensions[ext] {
			continue
		}
		subStem := strings.TrimSuffix(name, filepath.Ext(name))
		if !strings.HasPrefix(subStem, stem) {
			continue
		}

		sub := SidecarSubtitle{
			Path:   filepath.Join(dir, name),
			Format: strings.TrimPrefix(ext, "."),
		}

		markers := strings.Split(strings.TrimPrefix(subStem, stem), ".")
		for _, marker := range markers {
			marker = strings.ToLower(strings.TrimSpace(marker))
			switch {
			case marker == "":
			case marker == "forced":
				sub.Forced = true
			case marker == "sdh" || marker == "hi" || marker == "cc":
				sub.SDH = true
			case sub.Language == "" && isLanguageCode(marker):
				sub.Language = marker
			}
		}

		subs = append(subs, sub)
	}
	return subs, nil
}

func isLanguageCode(s string) bool {
	if len(s) == 2 {
		return twoLetterLangs[s]
	}
	if len(s) == 3 {
		for _, c := range s {
			if c < 'a' || c > 'z' {
				return false
			}
		}
		return true
	}
	return false
}
