//go:build darwin

package dualnet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const darwinSharedLibraryName = "libonnxruntime.dylib"

// defaultORTLibraryName is the shared library onnxruntime_go loads absent
// an explicit Config.Opaque["library_path"].
const defaultORTLibraryName = darwinSharedLibraryName

// darwinHomebrewLibDirs are the prefixes `brew install onnxruntime` installs
// into on Apple Silicon and Intel respectively. An inference daemon started
// outside of a build tree most commonly has the library there rather than
// next to the binary.
var darwinHomebrewLibDirs = []string{"/opt/homebrew/lib", "/usr/local/lib"}

func resolveORTSharedLibraryPath(libPath string) (string, error) {
	var candidates []string

	// An explicit path always wins, and is tried before anything guessed.
	if libPath != "" && libPath != defaultORTLibraryName {
		candidates = append(candidates, libPath)
	}

	candidates = append(candidates, darwinSharedLibraryName)

	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), darwinSharedLibraryName))
	}

	for _, dir := range darwinHomebrewLibDirs {
		candidates = append(candidates, filepath.Join(dir, darwinSharedLibraryName))
	}

	checked := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, p := range candidates {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		checked = append(checked, abs)
		info, err := os.Stat(abs)
		if err == nil && !info.IsDir() {
			return abs, nil
		}
	}

	return "", fmt.Errorf("cannot find %s, checked: %s", darwinSharedLibraryName, strings.Join(checked, ", "))
}

func configureORTSearchPath(libDir string) {
	prependPathEnv("DYLD_LIBRARY_PATH", libDir)
}
