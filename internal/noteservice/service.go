// Package noteservice coordinates storage, parsing, the in-memory graph,
// and the SQLite search mirror. It is the single writer for all index
// state: every mutation flows through here so the graph and the mirror
// stay in step.
package noteservice

import (
	"context"
	"errors"
	"os"
	"path"
	"strings"
	"time"

	"github.com/halvard/notegraph/internal/apperr"
	"github.com/halvard/notegraph/internal/checksum"
	"github.com/halvard/notegraph/internal/graph"
	"github.com/halvard/notegraph/internal/index"
	"github.com/halvard/notegraph/internal/models"
	"github.com/halvard/notegraph/internal/parser"
	"github.com/halvard/notegraph/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID          models.NoteID      `json:"id"`
	Path        string             `json:"path"`
	Title       string             `json:"title"`
	Content     string             `json:"content"`
	Checksum    string             `json:"checksum"`
	Aliases     []string           `json:"aliases"`
	Tags        []string           `json:"tags"`
	Frontmatter map[string]any     `json:"frontmatter,omitempty"`
	Refs        []models.Reference `json:"refs"`
	Backlinks   []models.Reference `json:"backlinks"`
	Warnings    []parser.Warning   `json:"warnings,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        models.NoteID `json:"id"`
	Path      string        `json:"path"`
	Title     string        `json:"title"`
	Checksum  string        `json:"checksum"`
	Tags      []string      `json:"tags"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Service coordinates storage, graph, and search index operations.
type Service struct {
	store storage.Provider
	graph *graph.Index
	db    *index.DB
}

// NewService creates a new note service.
func NewService(store storage.Provider, g *graph.Index, db *index.DB) *Service {
	return &Service{store: store, graph: g, db: db}
}

// Graph exposes the underlying graph index for read-only callers.
func (s *Service) Graph() *graph.Index { return s.graph }

// BuildNote parses raw content into a note record. Parse problems are
// recoverable: a note with malformed frontmatter or links still gets a
// record, with warnings attached to the parse result.
func BuildNote(notePath string, data []byte) (*models.Note, *parser.Result) {
	res := parser.Parse(data)
	id := models.IDFromPath(notePath)

	title := res.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(notePath), ".md")
	}

	n := &models.Note{
		ID:          id,
		Path:        notePath,
		Title:       title,
		Aliases:     res.Aliases,
		Tags:        res.Tags,
		Body:        res.Body,
		Frontmatter: res.Frontmatter,
		Checksum:    checksum.Sum(data),
		UpdatedAt:   time.Now(),
	}
	for _, r := range res.Refs {
		n.Refs = append(n.Refs, models.Reference{
			SourceID:    id,
			RawTarget:   r.RawTarget,
			DisplayText: r.DisplayText,
			Order:       r.Order,
		})
	}
	return n, res
}

// IndexFile parses data and upserts it into the graph and the search
// mirror. Exported so that sync and the watcher can reuse it.
func (s *Service) IndexFile(notePath string, data []byte) error {
	n, res := BuildNote(notePath, data)
	s.graph.Upsert(n)
	return s.db.UpsertNote(noteRowFrom(n), res.Body)
}

func noteRowFrom(n *models.Note) index.NoteRow {
	return index.NoteRow{
		Path:      n.Path,
		ID:        n.ID,
		Title:     n.Title,
		Aliases:   nonNilSlice(n.Aliases),
		Tags:      nonNilSlice(n.Tags),
		Checksum:  n.Checksum,
		UpdatedAt: n.UpdatedAt,
	}
}

// RemoveFile drops a note from the graph and the mirror. References to
// the note flip to broken in the graph; they are not deleted.
func (s *Service) RemoveFile(notePath string) error {
	s.graph.Remove(models.IDFromPath(notePath))
	return s.db.DeleteNote(notePath)
}

// GetNote reads a note from storage, parses it, and enriches it with
// graph state (backlinks, resolved refs, warnings).
func (s *Service) GetNote(_ context.Context, notePath string) (*NoteDetail, error) {
	data, err := s.store.Read(notePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildDetail(notePath, data), nil
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(_ context.Context, notePath string, content []byte) (*NoteDetail, error) {
	if _, err := s.store.Read(notePath); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(notePath, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(notePath, content); err != nil {
		return nil, err
	}
	return s.buildDetail(notePath, content), nil
}

// UpdateNote writes updated content with optimistic concurrency: when
// ifMatch is non-empty it must equal the checksum of the stored content.
func (s *Service) UpdateNote(_ context.Context, notePath string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.store.Read(notePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(notePath, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(notePath, content); err != nil {
		return nil, err
	}
	return s.buildDetail(notePath, content), nil
}

// DeleteNote removes a note from storage, graph, and mirror.
func (s *Service) DeleteNote(_ context.Context, notePath string) error {
	if err := s.store.Delete(notePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.RemoveFile(notePath)
}

// MoveNote renames a note on disk and re-keys it in the graph in a single
// graph mutation, so readers never observe the note missing. References
// whose raw target matched the old or new name are re-resolved.
func (s *Service) MoveNote(_ context.Context, oldPath, newPath string) (*NoteDetail, error) {
	if _, err := s.store.Read(newPath); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Move(oldPath, newPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	data, err := s.store.Read(newPath)
	if err != nil {
		return nil, err
	}

	n, res := BuildNote(newPath, data)
	s.graph.Rename(models.IDFromPath(oldPath), n)

	if err := s.db.DeleteNote(oldPath); err != nil {
		return nil, err
	}
	if err := s.db.UpsertNote(noteRowFrom(n), res.Body); err != nil {
		return nil, err
	}
	return s.buildDetail(newPath, data), nil
}

// ListNotes returns paginated notes with optional tag filter.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag, sort string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, strings.ToLower(tag), sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			ID:        r.ID,
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Resolve matches free text against titles and aliases. An ambiguous
// match returns all candidates alongside apperr.ErrAmbiguous; no match
// returns apperr.ErrNotFound.
func (s *Service) Resolve(_ context.Context, text string) (models.NoteID, []models.NoteID, error) {
	res := s.graph.Resolve(text)
	switch {
	case !res.Found():
		return "", nil, apperr.ErrNotFound
	case res.Ambiguous():
		return res.ID, res.Candidates, apperr.ErrAmbiguous
	default:
		return res.ID, res.Candidates, nil
	}
}

// Backlinks returns all references resolving to the note at notePath.
func (s *Service) Backlinks(_ context.Context, notePath string) []models.Reference {
	return nonNilSlice(s.graph.Backlinks(models.IDFromPath(notePath)))
}

// NotesWithTag returns note ids carrying the tag (case-insensitive).
func (s *Service) NotesWithTag(_ context.Context, tag string) []models.NoteID {
	return nonNilSlice(s.graph.NotesWithTag(tag))
}

// Tags lists all tags with their note counts.
func (s *Service) Tags(_ context.Context) []graph.TagEntry {
	return nonNilSlice(s.graph.Tags())
}

// GraphView returns all nodes and edges for graph rendering.
func (s *Service) GraphView(_ context.Context) ([]*graph.Node, []graph.Edge) {
	return s.graph.Nodes(), nonNilSlice(s.graph.Links())
}

// BrokenLinks returns every unresolved reference in the corpus.
func (s *Service) BrokenLinks(_ context.Context) []models.Reference {
	return nonNilSlice(s.graph.BrokenLinks())
}

// AmbiguousLinks returns warnings for links resolved by tie-break.
func (s *Service) AmbiguousLinks(_ context.Context) []graph.Warning {
	return nonNilSlice(s.graph.Warnings())
}

// Search delegates full-text search to the SQLite mirror.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

func (s *Service) buildDetail(notePath string, data []byte) *NoteDetail {
	n, res := BuildNote(notePath, data)
	node, ok := s.graph.Get(n.ID)
	refs := n.Refs
	if ok {
		// Prefer the graph's resolved refs over the freshly parsed
		// (unresolved) ones.
		refs = node.Refs
	}
	return &NoteDetail{
		ID:          n.ID,
		Path:        n.Path,
		Title:       n.Title,
		Content:     string(data),
		Checksum:    n.Checksum,
		Aliases:     nonNilSlice(n.Aliases),
		Tags:        nonNilSlice(n.Tags),
		Frontmatter: n.Frontmatter,
		Refs:        nonNilSlice(refs),
		Backlinks:   nonNilSlice(s.graph.Backlinks(n.ID)),
		Warnings:    res.Warnings,
		UpdatedAt:   n.UpdatedAt,
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
