package graph

import (
	"path"
	"sort"
	"strings"

	"github.com/halvard/notegraph/internal/models"
)

// snapshot is the immutable state readers see. Every derived structure is
// fully computed before the snapshot is published, so the backlink map is
// always the exact projection of all outbound references.
type snapshot struct {
	nodes     map[models.NoteID]*Node
	backlinks map[models.NoteID][]models.Reference
	tags      map[string][]models.NoteID
	titles    map[string][]candidate
	aliases   map[string][]candidate
	stems     map[string][]candidate
	warnings  []Warning
}

type candidate struct {
	id   models.NoteID
	path string
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// build derives a complete snapshot from the note set. The derivation is
// deterministic: identical input produces an identical snapshot, which
// makes corpus-wide reindexing idempotent.
func build(notes map[models.NoteID]*input) *snapshot {
	s := &snapshot{
		nodes:     make(map[models.NoteID]*Node, len(notes)),
		backlinks: make(map[models.NoteID][]models.Reference),
		tags:      make(map[string][]models.NoteID),
		titles:    make(map[string][]candidate),
		aliases:   make(map[string][]candidate),
		stems:     make(map[string][]candidate),
	}

	// Pass 1: name and tag indexes.
	for id, in := range notes {
		c := candidate{id: id, path: in.path}
		if t := fold(in.title); t != "" {
			s.titles[t] = append(s.titles[t], c)
		}
		for _, a := range in.aliases {
			if a = fold(a); a != "" {
				s.aliases[a] = append(s.aliases[a], c)
			}
		}
		stem := fold(path.Base(string(id)))
		s.stems[stem] = append(s.stems[stem], c)
		if stem != fold(string(id)) {
			s.stems[fold(string(id))] = append(s.stems[fold(string(id))], c)
		}
		for _, tag := range in.tags {
			s.tags[tag] = append(s.tags[tag], id)
		}
	}
	for _, m := range []map[string][]candidate{s.titles, s.aliases, s.stems} {
		for k, cs := range m {
			m[k] = dedupCandidates(cs)
		}
	}
	for tag, ids := range s.tags {
		s.tags[tag] = dedupIDs(ids)
	}

	// Pass 2: resolve references and build nodes.
	for id, in := range notes {
		node := &Node{
			ID:      id,
			Path:    in.path,
			Title:   in.title,
			Aliases: in.aliases,
			Tags:    in.tags,
		}
		for _, rr := range in.refs {
			res := s.resolve(rr.target)
			ref := models.Reference{
				SourceID:    id,
				RawTarget:   rr.target,
				DisplayText: rr.display,
				ResolvedID:  res.ID,
				Order:       rr.order,
			}
			node.Refs = append(node.Refs, ref)
			if res.Ambiguous() {
				s.warnings = append(s.warnings, Warning{
					Source:     id,
					RawTarget:  rr.target,
					Resolved:   res.ID,
					Candidates: res.Candidates,
				})
			}
		}
		s.nodes[id] = node
	}

	// Pass 3: backlinks as the projection of all outbound references.
	for _, node := range s.nodes {
		for _, r := range node.Refs {
			if !r.Broken() {
				s.backlinks[r.ResolvedID] = append(s.backlinks[r.ResolvedID], r)
			}
		}
	}
	for target, refs := range s.backlinks {
		sort.Slice(refs, func(i, j int) bool {
			a, b := refs[i], refs[j]
			at, bt := s.nodes[a.SourceID].Title, s.nodes[b.SourceID].Title
			if at != bt {
				return at < bt
			}
			if a.SourceID != b.SourceID {
				return a.SourceID < b.SourceID
			}
			return a.Order < b.Order
		})
		s.backlinks[target] = refs
	}

	sort.Slice(s.warnings, func(i, j int) bool {
		a, b := s.warnings[i], s.warnings[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.RawTarget < b.RawTarget
	})

	return s
}

// resolve matches text against titles, then aliases, then filename stems.
// The first non-empty tier wins; within a tier all candidates are kept
// (sorted by path) and the first is the deterministic pick.
func (s *snapshot) resolve(text string) Resolution {
	key := fold(text)
	if key == "" {
		return Resolution{}
	}
	for _, m := range []map[string][]candidate{s.titles, s.aliases, s.stems} {
		if cs := m[key]; len(cs) > 0 {
			ids := make([]models.NoteID, len(cs))
			for i, c := range cs {
				ids[i] = c.id
			}
			return Resolution{ID: ids[0], Candidates: ids}
		}
	}
	return Resolution{}
}

func dedupCandidates(cs []candidate) []candidate {
	sort.Slice(cs, func(i, j int) bool { return cs[i].path < cs[j].path })
	out := cs[:0]
	var last models.NoteID
	for _, c := range cs {
		if c.id == last && len(out) > 0 {
			continue
		}
		out = append(out, c)
		last = c.id
	}
	return out
}

func dedupIDs(ids []models.NoteID) []models.NoteID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	var last models.NoteID
	for _, id := range ids {
		if id == last && len(out) > 0 {
			continue
		}
		out = append(out, id)
		last = id
	}
	return out
}
