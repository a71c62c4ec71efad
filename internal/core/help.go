package core

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed help.txt
var defaultHelp string

// LoadHelp returns the help document at path, or the built-in one when path is empty.
func LoadHelp(path string) (string, error) {
	if path == "" {
		return strings.TrimRight(defaultHelp, "\n"), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read help file: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
