package models

import (
	"path/filepath"
	"strings"
)

// IDFromPath derives the NoteID for a vault-relative path. The mapping is
// case-insensitive and extension-stripped so that renames which only change
// case or extension keep the same identity.
func IDFromPath(path string) NoteID {
	p := filepath.ToSlash(path)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimSuffix(p, ".md")
	return NoteID(strings.ToLower(p))
}
