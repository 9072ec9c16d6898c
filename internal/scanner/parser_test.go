package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMovieFolderConvention(t *testing.T) {
	parsed := ParseMovie("/media/movies/The Matrix (1999)/The.Matrix.1999.1080p.BluRay.mkv")
	assert.Equal(t, "The Matrix", parsed.Title)
	require.NotNil(t, parsed.Year)
	assert.Equal(t, 1999, *parsed.Year)
}

func TestParseMovieFilenameParenYear(t *testing.T) {
	parsed := ParseMovie("/media/movies/Inception (2010).mp4")
	assert.Equal(t, "Inception", parsed.Title)
	require.NotNil(t, parsed.Year)
	assert.Equal(t, 2010, *parsed.Year)
}

func TestParseMovieDottedYear(t *testing.T) {
	parsed := ParseMovie("/downloads/Blade.Runner.1982.Directors.Cut.mkv")
	assert.Equal(t, "Blade Runner", parsed.Title)
	require.NotNil(t, parsed.Year)
	assert.Equal(t, 1982, *parsed.Year)
}

func TestParseMovieNoYear(t *testing.T) {
	parsed := ParseMovie("/downloads/Some_Home_Video.mp4")
	assert.Equal(t, "Some Home Video", parsed.Title)
	assert.Nil(t, parsed.Year)
}

func TestParseMovieYearOutOfRange(t *testing.T) {
	// 1234 is not a plausible release year, so it stays in the title.
	parsed := ParseMovie("/downloads/Film.1234.mkv")
	assert.Nil(t, parsed.Year)
}

func TestParseEpisodeSxxExx(t *testing.T) {
	parsed, ok := ParseEpisode("Breaking Bad/Season 1/Breaking.Bad.S01E02.Cat's.in.the.Bag.mkv")
	require.True(t, ok)
	assert.Equal(t, "Breaking Bad", parsed.SeriesTitle)
	assert.Equal(t, 1, parsed.Season)
	assert.Equal(t, 2, parsed.Episode)
	assert.Equal(t, "Cat's in the Bag", parsed.EpisodeTitle)
}

func TestParseEpisodeXFormat(t *testing.T) {
	parsed, ok := ParseEpisode("The Office/The Office 2x05.mkv")
	require.True(t, ok)
	assert.Equal(t, "The Office", parsed.SeriesTitle)
	assert.Equal(t, 2, parsed.Season)
	assert.Equal(t, 5, parsed.Episode)
}

func TestParseEpisodeVerbose(t *testing.T) {
	parsed, ok := ParseEpisode("Show/Season 3 Episode 12.mp4")
	require.True(t, ok)
	assert.Equal(t, 3, parsed.Season)
	assert.Equal(t, 12, parsed.Episode)
	// No text left of the match: series name comes from the folder.
	assert.Equal(t, "Show", parsed.SeriesTitle)
}

func TestParseEpisodeSeriesFromFolder(t *testing.T) {
	parsed, ok := ParseEpisode("Dark [tmdbid=70523]/Season 1/S01E01.mkv")
	require.True(t, ok)
	assert.Equal(t, "Dark", parsed.SeriesTitle)
	assert.Equal(t, 1, parsed.Season)
	assert.Equal(t, 1, parsed.Episode)
}

func TestParseEpisodeNoMatch(t *testing.T) {
	_, ok := ParseEpisode("Specials/blooper reel.mkv")
	assert.False(t, ok)
}

func TestProviderTags(t *testing.T) {
	tags := ProviderTags("Dark [tmdbid=70523] [imdbid=tt5753856]")
	assert.Equal(t, "70523", tags["tmdbid"])
	assert.Equal(t, "tt5753856", tags["imdbid"])
}

func TestShouldIgnoreDir(t *testing.T) {
	assert.True(t, ShouldIgnoreDir(".hidden"))
	assert.True(t, ShouldIgnoreDir("@eaDir"))
	assert.True(t, ShouldIgnoreDir("#recycle"))
	assert.True(t, ShouldIgnoreDir(".Trash-1000"))
	assert.True(t, ShouldIgnoreDir("lost+found"))
	assert.False(t, ShouldIgnoreDir("Season 1"))
	assert.False(t, ShouldIgnoreDir("Movies"))
}

func TestIsVideoFile(t *testing.T) {
	assert.True(t, IsVideoFile("/x/movie.mkv"))
	assert.True(t, IsVideoFile("/x/movie.MP4"))
	assert.True(t, IsVideoFile("/x/cam.m2ts"))
	assert.False(t, IsVideoFile("/x/cover.jpg"))
	assert.False(t, IsVideoFile("/x/subs.srt"))
	assert.False(t, IsVideoFile("/x/notes.txt"))
}
