package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/course"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/testutil"
)

// basis returns a unit vector with a 1 at index i. Basis vectors are
// mutually orthogonal, so cosine similarity between any two distinct ones
// is exactly 0 and between identical ones exactly 1.
func basis(i int) []float32 {
	v := make([]float32, VectorDim)
	v[i] = 1
	return v
}

// blend returns the normalized sum of two basis directions, giving a cosine
// similarity of about 0.707 against either component.
func blend(i, j int) []float32 {
	v := make([]float32, VectorDim)
	v[i] = 0.7071
	v[j] = 0.7071
	return v
}

func TestStoreIntegration(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	g := genkit.Init(ctx)
	if g == nil {
		t.Fatal("genkit.Init returned nil")
	}

	me := testutil.NewMockEmbedder(VectorDim)
	me.SetVector("Building Intelligent Agents", basis(0))
	me.SetVector("Vector Databases in Production", basis(1))
	me.SetVector("agents use tools to act", basis(2))
	me.SetVector("agents plan before acting", basis(3))
	me.SetVector("HNSW indexes trade recall for speed", basis(4))
	me.SetVector("welcome to the database course", basis(5))

	store := New(NewPostgresQuerier(tdb.Pool), me.RegisterEmbedder(g), 5, testutil.DiscardLogger())

	agents := &course.Course{
		Title:      "Building Intelligent Agents",
		Instructor: "Dr. Ada Park",
		Link:       "https://example.com/agents",
		Lessons: []course.Lesson{
			{Number: 1, Title: "Tool Use", Link: "https://example.com/agents/1"},
			{Number: 2, Title: "Planning"},
		},
	}
	databases := &course.Course{
		Title: "Vector Databases in Production",
		Lessons: []course.Lesson{
			{Number: 1, Title: "Index Types"},
		},
	}

	if err := store.AddCourse(ctx, agents); err != nil {
		t.Fatalf("AddCourse(agents) error = %v", err)
	}
	if err := store.AddCourse(ctx, databases); err != nil {
		t.Fatalf("AddCourse(databases) error = %v", err)
	}

	lesson1, lesson2 := 1, 2
	chunks := []course.Chunk{
		{Content: "agents use tools to act", CourseTitle: agents.Title, LessonNumber: &lesson1, LessonLink: "https://example.com/agents/1", Index: 0},
		{Content: "agents plan before acting", CourseTitle: agents.Title, LessonNumber: &lesson2, Index: 1},
		{Content: "HNSW indexes trade recall for speed", CourseTitle: databases.Title, LessonNumber: &lesson1, Index: 0},
		{Content: "welcome to the database course", CourseTitle: databases.Title, Index: 1},
	}
	if err := store.AddChunks(ctx, chunks); err != nil {
		t.Fatalf("AddChunks() error = %v", err)
	}

	t.Run("search ranks nearest chunk first", func(t *testing.T) {
		results, err := store.SearchChunks(ctx, "agents use tools to act")
		if err != nil {
			t.Fatalf("SearchChunks() error = %v", err)
		}
		if len(results) == 0 {
			t.Fatal("SearchChunks() returned no results")
		}
		top := results[0]
		if top.Content != "agents use tools to act" {
			t.Errorf("top result = %q", top.Content)
		}
		if top.Similarity < 0.99 {
			t.Errorf("top similarity = %f, want ~1", top.Similarity)
		}
		if top.LessonNumber == nil || *top.LessonNumber != 1 {
			t.Errorf("top lesson = %v, want 1", top.LessonNumber)
		}
		if top.LessonLink != "https://example.com/agents/1" {
			t.Errorf("top lesson link = %q", top.LessonLink)
		}
	})

	t.Run("course filter excludes other courses", func(t *testing.T) {
		results, err := store.SearchChunks(ctx, "agents use tools to act",
			WithCourse(databases.Title))
		if err != nil {
			t.Fatalf("SearchChunks() error = %v", err)
		}
		for _, r := range results {
			if r.CourseTitle != databases.Title {
				t.Errorf("result from course %q leaked through filter", r.CourseTitle)
			}
		}
	})

	t.Run("lesson filter", func(t *testing.T) {
		results, err := store.SearchChunks(ctx, "agents plan before acting",
			WithCourse(agents.Title), WithLesson(2))
		if err != nil {
			t.Fatalf("SearchChunks() error = %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("got %d results, want 1", len(results))
		}
		if results[0].Content != "agents plan before acting" {
			t.Errorf("result = %q", results[0].Content)
		}
	})

	t.Run("limit caps results", func(t *testing.T) {
		results, err := store.SearchChunks(ctx, "agents use tools to act", WithLimit(1))
		if err != nil {
			t.Fatalf("SearchChunks() error = %v", err)
		}
		if len(results) != 1 {
			t.Errorf("got %d results, want 1", len(results))
		}
	})

	t.Run("resolve partial course name", func(t *testing.T) {
		// Partial name embeds near the agents title but not identically.
		me.SetVector("agents", blend(0, 20))

		title, err := store.ResolveCourseTitle(ctx, "agents")
		if err != nil {
			t.Fatalf("ResolveCourseTitle() error = %v", err)
		}
		if title != agents.Title {
			t.Errorf("resolved %q, want %q", title, agents.Title)
		}
	})

	t.Run("resolve unrelated name", func(t *testing.T) {
		// Orthogonal to every stored title, similarity 0.
		me.SetVector("cooking with cast iron", basis(100))

		_, err := store.ResolveCourseTitle(ctx, "cooking with cast iron")
		if !errors.Is(err, ErrNoMatch) {
			t.Errorf("error = %v, want ErrNoMatch", err)
		}
	})

	t.Run("course outline", func(t *testing.T) {
		c, err := store.CourseOutline(ctx, agents.Title)
		if err != nil {
			t.Fatalf("CourseOutline() error = %v", err)
		}
		if c.Instructor != "Dr. Ada Park" || c.Link != "https://example.com/agents" {
			t.Errorf("course = %+v", c)
		}
		if len(c.Lessons) != 2 || c.Lessons[0].Title != "Tool Use" {
			t.Errorf("lessons = %+v", c.Lessons)
		}
	})

	t.Run("catalog", func(t *testing.T) {
		count, err := store.CourseCount(ctx)
		if err != nil {
			t.Fatalf("CourseCount() error = %v", err)
		}
		if count != 2 {
			t.Errorf("count = %d, want 2", count)
		}

		titles, err := store.CourseTitles(ctx)
		if err != nil {
			t.Fatalf("CourseTitles() error = %v", err)
		}
		if len(titles) != 2 || titles[0] != agents.Title {
			t.Errorf("titles = %v", titles)
		}
	})

	t.Run("re-adding a course is a no-op", func(t *testing.T) {
		changed := *agents
		changed.Instructor = "Someone Else"
		if err := store.AddCourse(ctx, &changed); err != nil {
			t.Fatalf("AddCourse() error = %v", err)
		}

		c, err := store.CourseOutline(ctx, agents.Title)
		if err != nil {
			t.Fatalf("CourseOutline() error = %v", err)
		}
		if c.Instructor != "Dr. Ada Park" {
			t.Errorf("instructor overwritten to %q", c.Instructor)
		}
	})
}
