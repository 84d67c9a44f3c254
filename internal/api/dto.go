package api

import (
	"github.com/halvard/notegraph/internal/graph"
	"github.com/halvard/notegraph/internal/models"
	"github.com/halvard/notegraph/internal/noteservice"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content"`
}

// MoveNoteRequest is the request body for renaming/moving a note.
type MoveNoteRequest struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

// NoteDetail is the full note response type (aliased from the domain
// layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response.
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes"`
	Total int            `json:"total"`
}

// ResolveResponse is the answer to a title/alias resolution query.
// Candidates lists every match when the text is ambiguous.
type ResolveResponse struct {
	ID         models.NoteID   `json:"id"`
	Ambiguous  bool            `json:"ambiguous"`
	Candidates []models.NoteID `json:"candidates,omitempty"`
}

// BacklinksResponse wraps the backlinks of one note.
type BacklinksResponse struct {
	Backlinks []models.Reference `json:"backlinks"`
}

// TagListResponse wraps the tag listing.
type TagListResponse struct {
	Tags []graph.TagEntry `json:"tags"`
}

// TagNotesResponse lists the notes carrying one tag.
type TagNotesResponse struct {
	Tag   string          `json:"tag"`
	Notes []models.NoteID `json:"notes"`
}

// GraphNode is a node in the knowledge graph response.
type GraphNode struct {
	ID    models.NoteID `json:"id"`
	Path  string        `json:"path"`
	Title string        `json:"title,omitempty"`
	Tags  []string      `json:"tags,omitempty"`
}

// GraphResponse wraps the knowledge graph.
type GraphResponse struct {
	Nodes []GraphNode  `json:"nodes"`
	Links []graph.Edge `json:"links"`
}

// BrokenLinksResponse wraps the corpus-wide broken link report.
type BrokenLinksResponse struct {
	BrokenLinks []models.Reference `json:"broken_links"`
}

// WarningsResponse wraps ambiguous-link warnings.
type WarningsResponse struct {
	Warnings []graph.Warning `json:"warnings"`
}
