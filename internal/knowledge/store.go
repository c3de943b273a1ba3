// Package knowledge stores course material as embedded chunks in PostgreSQL
// with pgvector and answers semantic search queries over it.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/course"
)

// defaultSearchTimeout bounds vector search queries so a slow index scan
// cannot block a chat turn indefinitely.
const defaultSearchTimeout = 10 * time.Second

// minTitleSimilarity is the floor for fuzzy course title resolution. Nearest
// neighbor always returns something; below this the match is considered
// meaningless and ErrNoMatch is returned instead.
const minTitleSimilarity = 0.3

// Store manages course content with vector search capabilities. It generates
// embeddings through the configured embedder and persists them via a Querier.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries    Querier
	embedder   ai.Embedder
	maxResults int
	logger     *slog.Logger
}

// New creates a Store. maxResults is the default search result limit used
// when a search does not pass WithLimit; values below 1 fall back to 5.
// A nil logger falls back to slog.Default().
func New(querier Querier, embedder ai.Embedder, maxResults int, logger *slog.Logger) *Store {
	if maxResults < 1 {
		maxResults = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		queries:    querier,
		embedder:   embedder,
		maxResults: maxResults,
		logger:     logger,
	}
}

// AddCourse stores a course's metadata and title embedding. Adding a course
// whose title already exists is a no-op, which makes ingestion idempotent.
func (s *Store) AddCourse(ctx context.Context, c *course.Course) error {
	if c == nil || c.Title == "" {
		return fmt.Errorf("add course: missing title")
	}

	embedding, err := s.embedTexts(ctx, []string{c.Title})
	if err != nil {
		return fmt.Errorf("embedding course title %q: %w", c.Title, err)
	}

	lessons, err := json.Marshal(c.Lessons)
	if err != nil {
		return fmt.Errorf("marshaling lessons for %q: %w", c.Title, err)
	}

	if err := s.queries.UpsertCourse(ctx, UpsertCourseParams{
		Title:          c.Title,
		Instructor:     c.Instructor,
		Link:           c.Link,
		Lessons:        lessons,
		TitleEmbedding: embedding[0],
	}); err != nil {
		return fmt.Errorf("upserting course %q: %w", c.Title, err)
	}

	s.logger.Debug("added course", "title", c.Title, "lessons", len(c.Lessons))
	return nil
}

// AddChunks embeds and stores a batch of chunks. All chunk contents are sent
// to the embedder in one request, then inserted in one database round trip.
func (s *Store) AddChunks(ctx context.Context, chunks []course.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}

	embeddings, err := s.embedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	args := make([]InsertChunkParams, len(chunks))
	for i, ch := range chunks {
		args[i] = InsertChunkParams{
			CourseTitle:  ch.CourseTitle,
			LessonNumber: ch.LessonNumber,
			LessonLink:   ch.LessonLink,
			ChunkIndex:   ch.Index,
			Content:      ch.Content,
			Embedding:    embeddings[i],
		}
	}

	if err := s.queries.InsertChunks(ctx, args); err != nil {
		return fmt.Errorf("inserting %d chunks: %w", len(chunks), err)
	}

	s.logger.Debug("added chunks", "count", len(chunks), "course", chunks[0].CourseTitle)
	return nil
}

// SearchChunks performs semantic search over stored chunks.
//
// Example:
//
//	results, err := store.SearchChunks(ctx, "what is backpropagation",
//	    knowledge.WithCourse("Deep Learning Basics"),
//	    knowledge.WithLesson(3))
func (s *Store) SearchChunks(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)
	if cfg.limit < 1 {
		cfg.limit = s.maxResults
	}

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embedTexts(queryCtx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.queries.SearchChunks(queryCtx, SearchChunksParams{
		QueryEmbedding: embedding[0],
		CourseTitle:    cfg.courseTitle,
		LessonNumber:   cfg.lessonNumber,
		ResultLimit:    cfg.limit,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Content:      row.Content,
			CourseTitle:  row.CourseTitle,
			LessonNumber: row.LessonNumber,
			LessonLink:   row.LessonLink,
			Similarity:   row.Similarity,
		})
	}
	return results, nil
}

// ResolveCourseTitle resolves a partial or approximate course name to the
// exact stored title using title embedding similarity, so "MCP" can match
// "MCP: Build Rich-Context AI Apps". Returns ErrNoMatch when no course is
// stored or the best candidate is too dissimilar.
func (s *Store) ResolveCourseTitle(ctx context.Context, name string) (string, error) {
	embedding, err := s.embedTexts(ctx, []string{name})
	if err != nil {
		return "", fmt.Errorf("embedding course name %q: %w", name, err)
	}

	row, err := s.queries.NearestCourseTitle(ctx, embedding[0])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("resolving course name %q: %w", name, ErrNoMatch)
		}
		return "", fmt.Errorf("resolving course name %q: %w", name, err)
	}

	if row.Similarity < minTitleSimilarity {
		s.logger.Debug("course name resolution below threshold",
			"name", name, "nearest", row.Title, "similarity", row.Similarity)
		return "", fmt.Errorf("resolving course name %q: %w", name, ErrNoMatch)
	}

	return row.Title, nil
}

// CourseOutline fetches a course's metadata and full lesson list by exact
// title. Returns ErrNoMatch when the title is not stored.
func (s *Store) CourseOutline(ctx context.Context, title string) (*course.Course, error) {
	row, err := s.queries.GetCourse(ctx, title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("fetching course %q: %w", title, ErrNoMatch)
		}
		return nil, fmt.Errorf("fetching course %q: %w", title, err)
	}

	c := &course.Course{
		Title:      row.Title,
		Instructor: row.Instructor,
		Link:       row.Link,
	}
	if len(row.Lessons) > 0 {
		if err := json.Unmarshal(row.Lessons, &c.Lessons); err != nil {
			return nil, fmt.Errorf("decoding lessons for %q: %w", title, err)
		}
	}
	return c, nil
}

// CourseTitles lists all stored course titles.
func (s *Store) CourseTitles(ctx context.Context) ([]string, error) {
	titles, err := s.queries.ListCourseTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing course titles: %w", err)
	}
	return titles, nil
}

// CourseCount returns the number of stored courses.
func (s *Store) CourseCount(ctx context.Context) (int, error) {
	count, err := s.queries.CountCourses(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting courses: %w", err)
	}
	return int(count), nil
}

// embedTexts embeds a batch of texts and validates that the embedder returned
// one non-empty vector per input. Output dimensionality is pinned to
// VectorDim to match the vector(768) schema columns.
func (s *Store) embedTexts(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = &ai.Document{Content: []*ai.Part{ai.NewTextPart(t)}}
	}

	dim := int32(VectorDim)
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([]pgvector.Vector, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		vectors[i] = pgvector.NewVector(e.Embedding)
	}
	return vectors, nil
}
