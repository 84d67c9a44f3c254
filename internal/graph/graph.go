// Package graph maintains the in-memory bidirectional link graph and tag
// index over the vault.
//
// Concurrency model: a single writer mutex serializes mutations; readers
// load an immutable snapshot through an atomic pointer, so queries never
// block and never observe a half-applied mutation. Each mutation derives
// a fresh snapshot from the note set and swaps it in one step.
package graph

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/halvard/notegraph/internal/models"
)

// Node is the graph's view of one note. The graph owns the derived link
// structures; note content stays with the service layer.
type Node struct {
	ID      models.NoteID
	Path    string
	Title   string
	Aliases []string
	Tags    []string // folded to lower case
	Refs    []models.Reference
}

// Edge is one directed link for graph rendering. Target is empty for a
// broken link.
type Edge struct {
	Source models.NoteID `json:"source"`
	Target models.NoteID `json:"target,omitempty"`
	Raw    string        `json:"raw"`
	Broken bool          `json:"broken,omitempty"`
}

// Resolution is the outcome of resolving free text against titles and
// aliases. Candidates holds every matching note sorted by path; more than
// one candidate means the text is ambiguous. ID is the deterministic
// lexicographic-first pick, empty when nothing matched.
type Resolution struct {
	ID         models.NoteID
	Candidates []models.NoteID
}

// Found reports whether at least one note matched.
func (r Resolution) Found() bool { return r.ID != "" }

// Ambiguous reports whether more than one note matched.
func (r Resolution) Ambiguous() bool { return len(r.Candidates) > 1 }

// Warning records an ambiguous wikilink that was resolved by the
// lexicographic tie-break rather than dropped.
type Warning struct {
	Source     models.NoteID   `json:"source"`
	RawTarget  string          `json:"raw_target"`
	Resolved   models.NoteID   `json:"resolved"`
	Candidates []models.NoteID `json:"candidates"`
}

// input is what the graph keeps per note to derive a snapshot: the parsed
// metadata plus unresolved outbound refs.
type input struct {
	id      models.NoteID
	path    string
	title   string
	aliases []string
	tags    []string
	refs    []rawRef
}

type rawRef struct {
	target  string
	display string
	order   int
}

// Index is the corpus-wide graph index.
type Index struct {
	mu    sync.Mutex // serializes writers; readers go through snap
	notes map[models.NoteID]*input
	snap  atomic.Pointer[snapshot]
}

// New returns an empty Index.
func New() *Index {
	ix := &Index{notes: make(map[models.NoteID]*input)}
	ix.snap.Store(build(ix.notes))
	return ix
}

// NoteInput converts a parsed note into graph input. Refs carry only the
// raw target and document order; resolution happens inside the graph.
func noteInput(n *models.Note) *input {
	in := &input{
		id:      n.ID,
		path:    n.Path,
		title:   n.Title,
		aliases: append([]string(nil), n.Aliases...),
		tags:    append([]string(nil), n.Tags...),
	}
	for _, r := range n.Refs {
		in.refs = append(in.refs, rawRef{target: r.RawTarget, display: r.DisplayText, order: r.Order})
	}
	return in
}

// Load atomically replaces the whole graph with the given notes. Nothing
// is visible to readers until the final swap, so an abandoned bulk load
// leaves no partial state.
func (ix *Index) Load(notes []*models.Note) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.notes = make(map[models.NoteID]*input, len(notes))
	for _, n := range notes {
		ix.notes[n.ID] = noteInput(n)
	}
	ix.snap.Store(build(ix.notes))
}

// Upsert inserts or replaces one note and re-derives every reference,
// backlink, and tag entry touching it in a single atomic swap.
func (ix *Index) Upsert(n *models.Note) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.notes[n.ID] = noteInput(n)
	ix.snap.Store(build(ix.notes))
}

// Remove deletes a note. References that resolved to it flip to broken;
// they are kept, not deleted, so broken links stay queryable.
func (ix *Index) Remove(id models.NoteID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.notes[id]; !ok {
		return
	}
	delete(ix.notes, id)
	ix.snap.Store(build(ix.notes))
}

// Rename moves a note to a new identity in one mutation: the old entry
// disappears, the new one appears, and references whose raw target
// matched either name set are re-resolved before the swap. A reader never
// sees the note absent.
func (ix *Index) Rename(oldID models.NoteID, n *models.Note) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if oldID != n.ID {
		delete(ix.notes, oldID)
	}
	ix.notes[n.ID] = noteInput(n)
	ix.snap.Store(build(ix.notes))
}

// Get returns the node for id.
func (ix *Index) Get(id models.NoteID) (*Node, bool) {
	n, ok := ix.snap.Load().nodes[id]
	return n, ok
}

// Len returns the number of indexed notes.
func (ix *Index) Len() int {
	return len(ix.snap.Load().nodes)
}

// Backlinks returns every reference resolving to id, ordered by source
// note title, then by occurrence order within the source.
func (ix *Index) Backlinks(id models.NoteID) []models.Reference {
	return ix.snap.Load().backlinks[id]
}

// NotesWithTag returns the ids of notes carrying tag (case-insensitive
// exact match), sorted by path.
func (ix *Index) NotesWithTag(tag string) []models.NoteID {
	return ix.snap.Load().tags[strings.ToLower(strings.TrimSpace(tag))]
}

// TagEntry is one tag with its note count.
type TagEntry struct {
	Tag   string `json:"tag"`
	Notes int    `json:"notes"`
}

// Tags lists all tags in the index, sorted.
func (ix *Index) Tags() []TagEntry {
	s := ix.snap.Load()
	out := make([]TagEntry, 0, len(s.tags))
	for tag, ids := range s.tags {
		out = append(out, TagEntry{Tag: tag, Notes: len(ids)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// Resolve matches text against note titles first, then aliases, trimmed
// and case-insensitive. All candidates are returned; callers decide
// whether an ambiguous match is acceptable.
func (ix *Index) Resolve(text string) Resolution {
	return ix.snap.Load().resolve(text)
}

// Nodes returns all graph nodes sorted by path.
func (ix *Index) Nodes() []*Node {
	s := ix.snap.Load()
	out := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Links returns every edge (including broken ones) sorted by source path
// then occurrence order.
func (ix *Index) Links() []Edge {
	s := ix.snap.Load()
	var out []Edge
	for _, n := range sortedNodes(s) {
		for _, r := range n.Refs {
			out = append(out, Edge{
				Source: r.SourceID,
				Target: r.ResolvedID,
				Raw:    r.RawTarget,
				Broken: r.Broken(),
			})
		}
	}
	return out
}

// BrokenLinks returns every unresolved reference, sorted by source path
// then occurrence order.
func (ix *Index) BrokenLinks() []models.Reference {
	s := ix.snap.Load()
	var out []models.Reference
	for _, n := range sortedNodes(s) {
		for _, r := range n.Refs {
			if r.Broken() {
				out = append(out, r)
			}
		}
	}
	return out
}

// Warnings returns the ambiguous-link warnings from the last resolution
// pass, sorted by source path.
func (ix *Index) Warnings() []Warning {
	return ix.snap.Load().warnings
}

func sortedNodes(s *snapshot) []*Node {
	out := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
