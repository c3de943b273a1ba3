// Package tools defines the Genkit tools the chat model can call to look up
// course material, plus the per-request source recorder that turns tool hits
// into user-visible citations.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/course"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/knowledge"
)

// Tool name constants registered with Genkit.
const (
	// SearchCourseContentName is the tool for semantic search over chunks.
	SearchCourseContentName = "search_course_content"
	// GetCourseOutlineName is the tool for fetching a course's lesson list.
	GetCourseOutlineName = "get_course_outline"
)

// SearchInput defines input for the search_course_content tool.
type SearchInput struct {
	Query        string `json:"query" jsonschema_description:"What to search for in the course content"`
	CourseName   string `json:"course_name,omitempty" jsonschema_description:"Course title, full or partial (e.g. 'MCP', 'Introduction')"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema_description:"Specific lesson number to search within (e.g. 1, 2, 3)"`
}

// OutlineInput defines input for the get_course_outline tool.
type OutlineInput struct {
	CourseName string `json:"course_name" jsonschema_description:"Course title, full or partial"`
}

// Store is the slice of the knowledge layer the tools depend on.
type Store interface {
	SearchChunks(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
	ResolveCourseTitle(ctx context.Context, name string) (string, error)
	CourseOutline(ctx context.Context, title string) (*course.Course, error)
}

// Search holds dependencies for the course lookup tool handlers.
type Search struct {
	store  Store
	logger *slog.Logger
}

// NewSearch creates a Search instance.
func NewSearch(store Store, logger *slog.Logger) (*Search, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Search{store: store, logger: logger}, nil
}

// Register registers both course lookup tools with Genkit.
func Register(g *genkit.Genkit, s *Search) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if s == nil {
		return nil, fmt.Errorf("search is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, SearchCourseContentName,
			"Search course materials with smart course name matching and lesson filtering. "+
				"Finds content passages that are semantically related to the query. "+
				"Use course_name to restrict results to one course (partial names work) "+
				"and lesson_number to restrict to one lesson.",
			s.SearchCourseContent),
		genkit.DefineTool(g, GetCourseOutlineName,
			"Get a course's outline: its title, link, and the complete numbered lesson list. "+
				"Use this for questions about course structure rather than course content.",
			s.GetCourseOutline),
	}, nil
}

// SearchCourseContent performs semantic search over stored course chunks and
// records a citation for every hit. Lookup misses are reported to the model
// as text rather than errors so it can relay them to the user.
func (s *Search) SearchCourseContent(ctx *ai.ToolContext, input SearchInput) (string, error) {
	s.logger.Info("search_course_content called",
		"query", input.Query, "course", input.CourseName, "lesson", input.LessonNumber)

	var opts []knowledge.SearchOption
	resolvedTitle := ""
	if input.CourseName != "" {
		title, err := s.store.ResolveCourseTitle(ctx, input.CourseName)
		if err != nil {
			if errors.Is(err, knowledge.ErrNoMatch) {
				return fmt.Sprintf("No course found matching '%s'", input.CourseName), nil
			}
			return "", fmt.Errorf("resolving course name: %w", err)
		}
		resolvedTitle = title
		opts = append(opts, knowledge.WithCourse(title))
	}
	if input.LessonNumber != nil {
		opts = append(opts, knowledge.WithLesson(*input.LessonNumber))
	}

	results, err := s.store.SearchChunks(ctx, input.Query, opts...)
	if err != nil {
		return "", fmt.Errorf("searching course content: %w", err)
	}

	if len(results) == 0 {
		return fmt.Sprintf("No relevant content found%s.", filterInfo(resolvedTitle, input.LessonNumber)), nil
	}

	recorder := RecorderFromContext(ctx)

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		header := r.CourseTitle
		if r.LessonNumber != nil {
			header = fmt.Sprintf("%s - Lesson %d", r.CourseTitle, *r.LessonNumber)
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", header, r.Content))
		recorder.Add(Source{Text: header, Link: r.LessonLink})
	}

	s.logger.Info("search_course_content succeeded", "query", input.Query, "results", len(results))
	return strings.Join(blocks, "\n\n"), nil
}

// GetCourseOutline returns a course's title, link, and numbered lesson list,
// and records the course itself as a citation.
func (s *Search) GetCourseOutline(ctx *ai.ToolContext, input OutlineInput) (string, error) {
	s.logger.Info("get_course_outline called", "course", input.CourseName)

	title, err := s.store.ResolveCourseTitle(ctx, input.CourseName)
	if err != nil {
		if errors.Is(err, knowledge.ErrNoMatch) {
			return fmt.Sprintf("No course found matching '%s'", input.CourseName), nil
		}
		return "", fmt.Errorf("resolving course name: %w", err)
	}

	c, err := s.store.CourseOutline(ctx, title)
	if err != nil {
		if errors.Is(err, knowledge.ErrNoMatch) {
			return fmt.Sprintf("No course found matching '%s'", input.CourseName), nil
		}
		return "", fmt.Errorf("fetching course outline: %w", err)
	}

	RecorderFromContext(ctx).Add(Source{Text: c.Title, Link: c.Link})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Course: %s\n", c.Title)
	if c.Link != "" {
		fmt.Fprintf(&sb, "Course Link: %s\n", c.Link)
	}
	fmt.Fprintf(&sb, "Lessons (%d):\n", len(c.Lessons))
	for _, lesson := range c.Lessons {
		fmt.Fprintf(&sb, "  Lesson %d: %s\n", lesson.Number, lesson.Title)
	}

	s.logger.Info("get_course_outline succeeded", "course", c.Title, "lessons", len(c.Lessons))
	return sb.String(), nil
}

// filterInfo describes the active search filters for a no-results message.
func filterInfo(courseTitle string, lessonNumber *int) string {
	var sb strings.Builder
	if courseTitle != "" {
		fmt.Fprintf(&sb, " in course '%s'", courseTitle)
	}
	if lessonNumber != nil {
		fmt.Fprintf(&sb, " in lesson %d", *lessonNumber)
	}
	return sb.String()
}
