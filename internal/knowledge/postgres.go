package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresQuerier implements Querier on a pgx connection pool. All statements
// are parameterized; user input never reaches SQL text.
type PostgresQuerier struct {
	pool *pgxpool.Pool
}

// NewPostgresQuerier wraps a connection pool.
func NewPostgresQuerier(pool *pgxpool.Pool) *PostgresQuerier {
	return &PostgresQuerier{pool: pool}
}

func (q *PostgresQuerier) UpsertCourse(ctx context.Context, arg UpsertCourseParams) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO courses (title, instructor, link, lessons, title_embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (title) DO NOTHING`,
		arg.Title, arg.Instructor, arg.Link, arg.Lessons, arg.TitleEmbedding)
	return err
}

func (q *PostgresQuerier) InsertChunks(ctx context.Context, args []InsertChunkParams) error {
	batch := &pgx.Batch{}
	for _, arg := range args {
		batch.Queue(`
			INSERT INTO course_chunks (course_title, lesson_number, lesson_link, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			arg.CourseTitle, arg.LessonNumber, arg.LessonLink, arg.ChunkIndex, arg.Content, arg.Embedding)
	}

	results := q.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range args {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("chunk %d of %d: %w", i+1, len(args), err)
		}
	}
	return results.Close()
}

func (q *PostgresQuerier) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]ChunkRow, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT content, course_title, lesson_number, lesson_link,
		       1 - (embedding <=> $1) AS similarity
		FROM course_chunks`)

	params := []any{arg.QueryEmbedding}
	var conds []string
	if arg.CourseTitle != "" {
		params = append(params, arg.CourseTitle)
		conds = append(conds, fmt.Sprintf("course_title = $%d", len(params)))
	}
	if arg.LessonNumber != nil {
		params = append(params, *arg.LessonNumber)
		conds = append(conds, fmt.Sprintf("lesson_number = $%d", len(params)))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	params = append(params, arg.ResultLimit)
	fmt.Fprintf(&sb, " ORDER BY embedding <=> $1 LIMIT $%d", len(params))

	rows, err := q.pool.Query(ctx, sb.String(), params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		var r ChunkRow
		if err := rows.Scan(&r.Content, &r.CourseTitle, &r.LessonNumber, &r.LessonLink, &r.Similarity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *PostgresQuerier) NearestCourseTitle(ctx context.Context, embedding pgvector.Vector) (TitleRow, error) {
	var r TitleRow
	err := q.pool.QueryRow(ctx, `
		SELECT title, 1 - (title_embedding <=> $1) AS similarity
		FROM courses
		ORDER BY title_embedding <=> $1
		LIMIT 1`, embedding).Scan(&r.Title, &r.Similarity)
	return r, err
}

func (q *PostgresQuerier) GetCourse(ctx context.Context, title string) (CourseRow, error) {
	var r CourseRow
	err := q.pool.QueryRow(ctx, `
		SELECT title, instructor, link, lessons
		FROM courses
		WHERE title = $1`, title).Scan(&r.Title, &r.Instructor, &r.Link, &r.Lessons)
	return r, err
}

func (q *PostgresQuerier) ListCourseTitles(ctx context.Context) ([]string, error) {
	rows, err := q.pool.Query(ctx, `SELECT title FROM courses ORDER BY created_at, title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

func (q *PostgresQuerier) CountCourses(ctx context.Context) (int64, error) {
	var n int64
	err := q.pool.QueryRow(ctx, `SELECT COUNT(*) FROM courses`).Scan(&n)
	return n, err
}
