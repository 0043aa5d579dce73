//go:build !darwin && !windows

package dualnet

import (
	"fmt"
	"path/filepath"
)

// defaultORTLibraryName is the shared library onnxruntime_go loads absent
// an explicit Config.Opaque["library_path"].
const defaultORTLibraryName = "onnxruntime.so"

func resolveORTSharedLibraryPath(libPath string) (string, error) {
	if libPath == "" {
		return "", fmt.Errorf("empty onnxruntime shared library path")
	}
	absLibPath, err := filepath.Abs(libPath)
	if err != nil {
		return "", err
	}
	return absLibPath, nil
}

func configureORTSearchPath(libDir string) {}
