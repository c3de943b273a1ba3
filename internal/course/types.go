// Package course defines the course domain model and the parser that turns
// semi-structured course transcripts into courses, lessons, and
// context-prefixed chunks ready for embedding.
package course

// Course is the top-level document unit. Title is the unique key in the
// knowledge store; ingestion skips documents whose title already exists.
type Course struct {
	Title      string   `json:"title"`
	Instructor string   `json:"instructor,omitempty"`
	Link       string   `json:"link,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson is a numbered subsection of a Course.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Chunk is a contiguous, context-prefixed span of course text. Content is the
// prefixed text that embeddings are computed over; Index is the chunk's
// sequence position within the whole course (monotonically increasing).
//
// LessonNumber is nil for course-level text outside any lesson.
type Chunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	LessonLink   string
	Index        int
}
