package dualnet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolveModelPath locates a model artifact, trying the path as given, then
// the same path with fallbackExt appended, then both of those next to the
// running executable. The fallback-extension step mirrors TfDualNet's model
// loading in the original source ("if we can't find the specified graph,
// try adding a .pb extension") generalized to whatever suffix the calling
// backend's artifact actually uses — pass "" for backends (like remote)
// that have no on-disk artifact of their own.
func resolveModelPath(modelPath, fallbackExt string) (string, error) {
	if modelPath == "" {
		return "", fmt.Errorf("empty model path")
	}

	tries := []string{modelPath}
	if fallbackExt != "" && filepath.Ext(modelPath) != fallbackExt {
		tries = append(tries, modelPath+fallbackExt)
	}

	candidates := make([]string, 0, len(tries)*3)
	for _, p := range tries {
		candidates = append(candidates, p)
		if !filepath.IsAbs(p) {
			if exe, err := os.Executable(); err == nil {
				exeDir := filepath.Dir(exe)
				candidates = append(candidates, filepath.Join(exeDir, p))
				candidates = append(candidates, filepath.Join(exeDir, filepath.Base(p)))
			}
		}
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

	return "", fmt.Errorf("model file not found, checked: %s", strings.Join(checked, ", "))
}
