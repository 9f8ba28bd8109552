package core

import (
	"path/filepath"
	"strings"
	"time"
)

// msToDuration converts stored milliseconds back to a Duration.
func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// cleanFileName strips any client-supplied directory from an upload name.
func cleanFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
