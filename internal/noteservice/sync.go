package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/halvard/notegraph/internal/models"
)

// Sync brings the graph and the search mirror up to date with the vault:
//   - every note on disk is parsed and loaded into the graph in one
//     atomic snapshot swap (cold start is all-or-nothing)
//   - mirror rows are upserted where checksums changed and deleted where
//     files are gone
//
// Extraction runs in parallel (pure function, no shared state); the
// graph and mirror commits are serialized.
func (s *Service) Sync(ctx context.Context, logger *slog.Logger) error {
	metas, err := s.store.List("")
	if err != nil {
		return fmt.Errorf("sync: list vault: %w", err)
	}

	type parsed struct {
		note *models.Note
		body string
	}
	results := make([]*parsed, len(metas))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, m := range metas {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, readErr := s.store.Read(m.Path)
			if readErr != nil {
				// Unreadable file: fatal for this note only.
				logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", readErr.Error()))
				return nil
			}
			n, res := BuildNote(m.Path, data)
			for _, w := range res.Warnings {
				logger.Warn("sync: parse warning",
					slog.String("path", m.Path),
					slog.String("kind", w.Kind),
					slog.String("detail", w.Detail))
			}
			results[i] = &parsed{note: n, body: res.Body}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Abandoned before commit: no partial state was published.
		return fmt.Errorf("sync: extract: %w", err)
	}

	notes := make([]*models.Note, 0, len(results))
	for _, p := range results {
		if p != nil {
			notes = append(notes, p.note)
		}
	}
	s.graph.Load(notes)

	for _, w := range s.graph.Warnings() {
		logger.Warn("sync: ambiguous link",
			slog.String("source", string(w.Source)),
			slog.String("raw_target", w.RawTarget),
			slog.String("resolved", string(w.Resolved)))
	}

	// Mirror reconciliation: upsert changed, delete stale.
	checksums, err := s.db.AllChecksums()
	if err != nil {
		return fmt.Errorf("sync: all checksums: %w", err)
	}
	disk := make(map[string]struct{}, len(results))
	for _, p := range results {
		if p == nil {
			continue
		}
		n := p.note
		disk[n.Path] = struct{}{}
		if checksums[n.Path] == n.Checksum {
			continue
		}
		row := noteRowFrom(n)
		if err := s.db.UpsertNote(row, p.body); err != nil {
			logger.Warn("sync: mirror upsert failed", slog.String("path", n.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", n.Path))
		}
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := s.db.DeleteNote(p); err != nil {
				logger.Warn("sync: mirror delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	logger.Info("sync: complete", slog.Int("notes", len(notes)))
	return nil
}
