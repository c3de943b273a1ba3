package knowledge

import (
	"context"
	"errors"
	"time"

	"github.com/pgvector/pgvector-go"
)

// VectorDim is the dimensionality of all stored embeddings. The migration
// schema declares vector(768) columns, so embedders must be configured to
// produce vectors of exactly this size.
const VectorDim = 768

// ErrNoMatch indicates that no stored course matched a fuzzy title lookup.
var ErrNoMatch = errors.New("no matching course")

// Result is a single chunk returned by semantic search.
type Result struct {
	Content      string
	CourseTitle  string
	LessonNumber *int // nil for course-level text outside any lesson
	LessonLink   string
	Similarity   float32 // cosine similarity (0-1)
}

// SearchOption configures chunk search using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	limit        int
	courseTitle  string
	lessonNumber *int
	timeout      time.Duration
}

// WithCourse restricts search to chunks of the course with the given exact
// title. Use Store.ResolveCourseTitle first to turn a partial name into an
// exact one.
func WithCourse(title string) SearchOption {
	return func(c *searchConfig) {
		c.courseTitle = title
	}
}

// WithLesson restricts search to chunks of one lesson number.
func WithLesson(number int) SearchOption {
	return func(c *searchConfig) {
		n := number
		c.lessonNumber = &n
	}
}

// WithLimit sets the maximum number of results. Zero means the store default.
func WithLimit(k int) SearchOption {
	return func(c *searchConfig) {
		c.limit = k
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		timeout: defaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Querier defines the database operations Store depends on. The interface is
// defined here, by the consumer, so tests can substitute an in-memory fake.
type Querier interface {
	// UpsertCourse inserts a course, leaving any existing row with the same
	// title untouched.
	UpsertCourse(ctx context.Context, arg UpsertCourseParams) error

	// InsertChunks inserts a batch of chunks in one round trip.
	InsertChunks(ctx context.Context, args []InsertChunkParams) error

	// SearchChunks performs vector search with optional course and lesson
	// filters.
	SearchChunks(ctx context.Context, arg SearchChunksParams) ([]ChunkRow, error)

	// NearestCourseTitle returns the stored course title whose embedding is
	// closest to the argument, or pgx.ErrNoRows when no courses exist.
	NearestCourseTitle(ctx context.Context, embedding pgvector.Vector) (TitleRow, error)

	// GetCourse fetches one course row by exact title.
	GetCourse(ctx context.Context, title string) (CourseRow, error)

	// ListCourseTitles lists all stored course titles in insertion order.
	ListCourseTitles(ctx context.Context) ([]string, error)

	// CountCourses counts stored courses.
	CountCourses(ctx context.Context) (int64, error)
}

// UpsertCourseParams carries one course row. Lessons is a JSON-encoded
// []course.Lesson.
type UpsertCourseParams struct {
	Title          string
	Instructor     string
	Link           string
	Lessons        []byte
	TitleEmbedding pgvector.Vector
}

// InsertChunkParams carries one chunk row.
type InsertChunkParams struct {
	CourseTitle  string
	LessonNumber *int
	LessonLink   string
	ChunkIndex   int
	Content      string
	Embedding    pgvector.Vector
}

// SearchChunksParams carries a vector search request. Empty CourseTitle and
// nil LessonNumber mean no filter.
type SearchChunksParams struct {
	QueryEmbedding pgvector.Vector
	CourseTitle    string
	LessonNumber   *int
	ResultLimit    int
}

// ChunkRow is one vector search hit.
type ChunkRow struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	LessonLink   string
	Similarity   float32
}

// TitleRow is the result of a nearest-title lookup.
type TitleRow struct {
	Title      string
	Similarity float32
}

// CourseRow is one stored course. Lessons is a JSON-encoded []course.Lesson.
type CourseRow struct {
	Title      string
	Instructor string
	Link       string
	Lessons    []byte
}
