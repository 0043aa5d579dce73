//go:build !windows

package dualnet

import "os"

func setNativeEnv(key, value string) {
	_ = os.Setenv(key, value)
}

func prependPathEnv(key, dir string) {
	existing := os.Getenv(key)
	if existing == "" {
		_ = os.Setenv(key, dir)
		return
	}
	_ = os.Setenv(key, dir+string(os.PathListSeparator)+existing)
}
