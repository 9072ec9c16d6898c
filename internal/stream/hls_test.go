package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSessionFilename(t *testing.T) {
	assert.True(t, ValidSessionFilename("master.m3u8"))
	assert.True(t, ValidSessionFilename("seg_00042.ts"))
	assert.False(t, ValidSessionFilename(""))
	assert.False(t, ValidSessionFilename("../secrets"))
	assert.False(t, ValidSessionFilename("a/../../etc/passwd"))
	assert.False(t, ValidSessionFilename("dir/file.ts"))
	assert.False(t, ValidSessionFilename(`dir\file.ts`))
}

func TestHLSContentType(t *testing.T) {
	assert.Equal(t, "application/vnd.apple.mpegurl", HLSContentType("master.m3u8"))
	assert.Equal(t, "video/mp4", HLSContentType("init.mp4"))
	assert.Equal(t, "video/mp4", HLSContentType("seg_00001.m4s"))
	assert.Equal(t, "video/MP2T", HLSContentType("seg_00001.ts"))
}
