package loader

import (
	"path"
	"strings"
)

// cleanMemberPath validates and cleans a path requested from within a
// component package. Absolute paths and parent-traversal are rejected
// per §4.1's file-getter contract.
func cleanMemberPath(name string) (string, error) {
	if name == "" {
		return "", ErrPathEscape
	}
	if path.IsAbs(name) {
		return "", ErrPathEscape
	}
	cleaned := path.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrPathEscape
	}
	return cleaned, nil
}
