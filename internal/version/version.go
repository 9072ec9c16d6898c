// Package version reads the build version shipped next to the binary.
package version

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const fallback = "0.0.0-dev"

type Info struct {
	Version string `json:"version"`
}

// Load reads version.json from the working directory, falling back to the
// executable's directory, then to a dev placeholder. Missing or malformed
// files are not fatal; the server runs fine without a version stamp.
func Load() Info {
	for _, path := range candidates() {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var info Info
		if err := json.Unmarshal(data, &info); err == nil && info.Version != "" {
			return info
		}
	}
	return Info{Version: fallback}
}

func candidates() []string {
	paths := []string{"version.json"}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "version.json"))
	}
	return paths
}
