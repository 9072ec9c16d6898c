package scanner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ParsedMovie holds the title and optional year extracted from a movie path.
type ParsedMovie struct {
	Title string
	Year  *int
}

// ParsedEpisode holds series/season/episode info extracted from an episode path.
type ParsedEpisode struct {
	SeriesTitle  string
	Season       int
	Episode      int
	EpisodeTitle string
}

// videoExtensions is the set of container extensions treated as playable video.
var videoExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".mkv": true, ".webm": true,
	".mov": true, ".avi": true, ".wmv": true, ".flv": true,
	".ts": true, ".m2ts": true, ".mts": true,
	".mpg": true, ".mpeg": true, ".mpe": true, ".mpv": true,
	".3gp": true, ".3g2": true, ".ogv": true, ".vob": true,
	".mxf": true, ".asf": true, ".f4v": true,
}

// junkDirNames are directory names created by NAS appliances and trash tooling
// that never contain library media.
var junkDirNames = map[string]bool{
	"@eaDir":     true,
	"#recycle":   true,
	"lost+found": true,
}

// Title (Year) — the convention used by most curated movie folders.
var titleYearParenRx = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)`)

// Movie.Title.2020.1080p — year embedded between delimiters.
var titleYearLooseRx = regexp.MustCompile(`^(.+?)[\.\s](\d{4})(?:[\.\s]|$)`)

// Episode numbering patterns, tried in order of specificity.
var episodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[Ss](\d{1,2})[Ee](\d{1,3})`),
	regexp.MustCompile(`(?i)(\d{1,2})[xX](\d{2,3})`),
	regexp.MustCompile(`(?i)Season\s+(\d+)\s+Episode\s+(\d+)`),
}

// Provider tag convention in folder names: [tmdbid=12345], [imdbid=tt0111161].
var providerTagRx = regexp.MustCompile(`\[(\w+)=([^\]]+)\]`)

// IsVideoFile reports whether the path has a recognized video extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// ShouldIgnoreDir reports whether a directory should be pruned from the walk.
func ShouldIgnoreDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if junkDirNames[name] {
		return true
	}
	return strings.HasPrefix(name, ".Trash")
}

// ParseMovie extracts a movie title and year from a file path. The parent
// folder name wins when it follows the "Title (Year)" convention, since folder
// names are usually curated while file names carry release junk.
func ParseMovie(path string) ParsedMovie {
	parent := filepath.Base(filepath.Dir(path))
	if m := titleYearParenRx.FindStringSubmatch(parent); m != nil {
		if year, ok := parseYear(m[2]); ok {
			return ParsedMovie{Title: strings.TrimSpace(m[1]), Year: &year}
		}
	}

	stem := stemOf(path)
	if m := titleYearParenRx.FindStringSubmatch(stem); m != nil {
		if year, ok := parseYear(m[2]); ok {
			return ParsedMovie{Title: cleanTitle(m[1]), Year: &year}
		}
	}
	if m := titleYearLooseRx.FindStringSubmatch(stem); m != nil {
		if year, ok := parseYear(m[2]); ok {
			return ParsedMovie{Title: cleanTitle(m[1]), Year: &year}
		}
	}

	return ParsedMovie{Title: cleanTitle(stem)}
}

// ParseEpisode extracts series/season/episode info from a file path relative
// to the library root. Returns false when no episode numbering is present.
//
// Text left of the match becomes the series title; text right of it becomes
// the episode title. When the filename carries no series name the first
// component of relPath (the series folder) is used instead.
func ParseEpisode(relPath string) (ParsedEpisode, bool) {
	stem := stemOf(relPath)

	for _, rx := range episodePatterns {
		loc := rx.FindStringSubmatchIndex(stem)
		if loc == nil {
			continue
		}

		season, _ := strconv.Atoi(stem[loc[2]:loc[3]])
		episode, _ := strconv.Atoi(stem[loc[4]:loc[5]])

		parsed := ParsedEpisode{
			Season:       season,
			Episode:      episode,
			SeriesTitle:  cleanTitle(stem[:loc[0]]),
			EpisodeTitle: strings.Trim(stem[loc[1]:], "-. _"),
		}
		parsed.EpisodeTitle = cleanTitle(parsed.EpisodeTitle)

		if parsed.SeriesTitle == "" {
			parsed.SeriesTitle = seriesTitleFromPath(relPath)
		}
		return parsed, true
	}

	return ParsedEpisode{}, false
}

// seriesTitleFromPath takes the first path component (the series folder),
// stripping provider tags and a trailing year.
func seriesTitleFromPath(relPath string) string {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) < 2 {
		return ""
	}
	folder := providerTagRx.ReplaceAllString(parts[0], "")
	if m := titleYearParenRx.FindStringSubmatch(folder); m != nil {
		folder = m[1]
	}
	return cleanTitle(folder)
}

// ProviderTags extracts provider id tags like [tmdbid=12345] from a folder name.
func ProviderTags(name string) map[string]string {
	tags := make(map[string]string)
	for _, m := range providerTagRx.FindAllStringSubmatch(name, -1) {
		tags[strings.ToLower(m[1])] = m[2]
	}
	return tags
}

func parseYear(s string) (int, bool) {
	year, err := strconv.Atoi(s)
	if err != nil || year < 1900 || year > 2100 {
		return 0, false
	}
	return year, true
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var spaceRx = regexp.MustCompile(`\s+`)

// cleanTitle turns scene-release delimiters into spaces and trims leftovers.
func cleanTitle(s string) string {
	s = strings.ReplaceAll(s, ".", " ")
	s = strings.ReplaceAll(s, "_", " ")
	s = spaceRx.ReplaceAllString(s, " ")
	return strings.Trim(s, " -")
}
