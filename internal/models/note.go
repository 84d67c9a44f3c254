// Package models defines the domain types for notegraph.
package models

import "time"

// NoteID is the stable identity of a note: its vault-relative path with
// forward slashes, lower-cased, and the .md extension stripped. Two paths
// differing only in case map to the same NoteID.
type NoteID string

// Note represents a parsed Markdown file in the vault.
type Note struct {
	ID          NoteID         `json:"id"`
	Path        string         `json:"path"`
	Title       string         `json:"title,omitempty"`
	Aliases     []string       `json:"aliases,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Body        string         `json:"body"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Refs        []Reference    `json:"refs,omitempty"`
	Checksum    string         `json:"checksum"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Reference is a single wikilink occurrence in a note body.
//
// ResolvedID is empty when the target does not match any note's title or
// alias; such a reference is a broken link, which is an ordinary state of
// the graph rather than an error.
type Reference struct {
	SourceID    NoteID `json:"source"`
	RawTarget   string `json:"raw_target"`
	DisplayText string `json:"display_text,omitempty"`
	ResolvedID  NoteID `json:"resolved,omitempty"`
	// Order is the document-order position of the occurrence within its
	// source note, starting at 0.
	Order int `json:"order"`
}

// Broken reports whether the reference failed to resolve.
func (r Reference) Broken() bool { return r.ResolvedID == "" }

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
