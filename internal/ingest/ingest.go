// Package ingest loads course transcript files from a directory into the
// knowledge store. Ingestion is idempotent: courses whose titles are already
// stored are skipped, so re-running on the same directory only adds new
// material.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/course"
)

// Store is the slice of the knowledge layer ingestion depends on.
type Store interface {
	AddCourse(ctx context.Context, c *course.Course) error
	AddChunks(ctx context.Context, chunks []course.Chunk) error
	CourseTitles(ctx context.Context) ([]string, error)
}

// Result summarizes one ingestion run.
type Result struct {
	CoursesAdded int
	ChunksAdded  int
	FilesSkipped int
	FilesFailed  int
	Duration     time.Duration
}

// Ingester parses transcript files and loads them into a Store.
type Ingester struct {
	parser *course.Parser
	store  Store
	logger *slog.Logger
}

// New creates an Ingester.
func New(parser *course.Parser, store Store, logger *slog.Logger) (*Ingester, error) {
	if parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{parser: parser, store: store, logger: logger}, nil
}

// Directory ingests every .txt and .md file in dir (non-recursive, sorted by
// name for deterministic ordering). A file whose course title is already
// stored is skipped; a file that fails to parse or store is counted and
// logged but does not abort the run.
func (ing *Ingester) Directory(ctx context.Context, dir string) (Result, error) {
	start := time.Now()
	var res Result

	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("reading documents directory: %w", err)
	}

	existing, err := ing.store.CourseTitles(ctx)
	if err != nil {
		return res, fmt.Errorf("listing existing courses: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, title := range existing {
		known[title] = true
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".md":
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		added, skipped, err := ing.file(ctx, filepath.Join(dir, name), known)
		if err != nil {
			res.FilesFailed++
			ing.logger.Warn("ingesting file failed", "file", name, "error", err)
			continue
		}
		if skipped {
			res.FilesSkipped++
			continue
		}
		res.CoursesAdded++
		res.ChunksAdded += added
	}

	res.Duration = time.Since(start)
	ing.logger.Info("ingestion complete",
		"courses_added", res.CoursesAdded,
		"chunks_added", res.ChunksAdded,
		"files_skipped", res.FilesSkipped,
		"files_failed", res.FilesFailed,
		"duration", res.Duration)

	return res, nil
}

// file ingests one transcript. known is updated in place so duplicate titles
// within a single run are also skipped.
func (ing *Ingester) file(ctx context.Context, path string, known map[string]bool) (chunksAdded int, skipped bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("reading file: %w", err)
	}

	c, chunks, err := ing.parser.Parse(string(data), filepath.Base(path))
	if err != nil {
		return 0, false, fmt.Errorf("parsing: %w", err)
	}

	if known[c.Title] {
		ing.logger.Debug("skipping existing course", "title", c.Title, "file", filepath.Base(path))
		return 0, true, nil
	}

	if err := ing.store.AddCourse(ctx, c); err != nil {
		return 0, false, fmt.Errorf("storing course: %w", err)
	}
	if err := ing.store.AddChunks(ctx, chunks); err != nil {
		return 0, false, fmt.Errorf("storing chunks: %w", err)
	}

	known[c.Title] = true
	ing.logger.Debug("ingested course", "title", c.Title, "chunks", len(chunks))
	return len(chunks), false, nil
}
