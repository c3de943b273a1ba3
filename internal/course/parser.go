package course

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/chunker"
)

// ErrEmptyDocument indicates the document contains no usable text.
var ErrEmptyDocument = errors.New("empty document")

// headerScanLines is how many leading lines are scanned for the course
// metadata block before falling back to lesson scanning.
const headerScanLines = 4

var lessonPattern = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// Parser turns a course transcript into a Course and its chunks.
type Parser struct {
	ChunkSize    int // target chunk size in characters
	ChunkOverlap int // overlap between consecutive chunks in characters
}

// Parse parses a document's full text.
//
// The first few lines may form a header block:
//
//	Course Title: Introduction to Machine Learning
//	Course Instructor: Dr. John Smith
//	Course Link: https://example.com/ml-course
//
// When no title line is present, fallbackTitle (typically the filename) is
// used. The remainder is scanned for "Lesson <N>: <Title>" markers, each
// optionally followed by a "Lesson Link: <url>" line; text between one marker
// and the next belongs to that lesson.
//
// Every chunk's stored text is prefixed with "Course <T> Lesson <N> content: "
// (or "Course <T> content: " outside lesson context) so embeddings are biased
// toward correct course and lesson attribution. Chunk indices increase
// monotonically across the whole course.
func (p *Parser) Parse(text, fallbackTitle string) (*Course, []Chunk, error) {
	lines := strings.Split(text, "\n")

	c := &Course{Title: fallbackTitle}

	// Header block: scan leading lines for course metadata.
	bodyStart := 0
	for i, line := range lines {
		if i >= headerScanLines {
			break
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case matchField(trimmed, "Course Title:") != "":
			c.Title = matchField(trimmed, "Course Title:")
			bodyStart = i + 1
		case matchField(trimmed, "Course Instructor:") != "":
			c.Instructor = matchField(trimmed, "Course Instructor:")
			bodyStart = i + 1
		case matchField(trimmed, "Course Link:") != "":
			c.Link = matchField(trimmed, "Course Link:")
			bodyStart = i + 1
		}
	}

	if strings.TrimSpace(c.Title) == "" {
		return nil, nil, fmt.Errorf("parsing document: no course title and no fallback")
	}

	var chunks []Chunk

	// Course-level preamble before the first lesson marker.
	var preamble []string

	// Current lesson being accumulated. nil means no lesson seen yet.
	var current *Lesson
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		c.Lessons = append(c.Lessons, *current)
		chunks = append(chunks, p.chunkLesson(c.Title, current, strings.Join(body, "\n"), len(chunks))...)
		current = nil
		body = nil
	}

	for i := bodyStart; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])

		if m := lessonPattern.FindStringSubmatch(trimmed); m != nil {
			flush()
			number, err := strconv.Atoi(m[1])
			if err != nil {
				// Unreachable with the \d+ pattern, but never panic on input.
				continue
			}
			current = &Lesson{Number: number, Title: strings.TrimSpace(m[2])}

			// Optional lesson link on the adjacent line.
			if i+1 < len(lines) {
				if link := matchField(strings.TrimSpace(lines[i+1]), "Lesson Link:"); link != "" {
					current.Link = link
					i++
				}
			}
			continue
		}

		if current != nil {
			body = append(body, lines[i])
		} else {
			preamble = append(preamble, lines[i])
		}
	}
	flush()

	// A document without lesson markers is still a course; its text is
	// chunked with course-level context only.
	if len(c.Lessons) == 0 {
		for _, piece := range chunker.Split(strings.Join(preamble, "\n"), p.ChunkSize, p.ChunkOverlap) {
			chunks = append(chunks, Chunk{
				Content:     fmt.Sprintf("Course %s content: %s", c.Title, piece),
				CourseTitle: c.Title,
				Index:       len(chunks),
			})
		}
	}

	if len(chunks) == 0 {
		return nil, nil, fmt.Errorf("parsing course %q: %w", c.Title, ErrEmptyDocument)
	}

	return c, chunks, nil
}

// chunkLesson splits one lesson body and prefixes each chunk with its course
// and lesson context. startIndex keeps chunk indices monotonic per course.
func (p *Parser) chunkLesson(courseTitle string, lesson *Lesson, body string, startIndex int) []Chunk {
	pieces := chunker.Split(body, p.ChunkSize, p.ChunkOverlap)

	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		number := lesson.Number
		chunks = append(chunks, Chunk{
			Content:      fmt.Sprintf("Course %s Lesson %d content: %s", courseTitle, lesson.Number, piece),
			CourseTitle:  courseTitle,
			LessonNumber: &number,
			LessonLink:   lesson.Link,
			Index:        startIndex + len(chunks),
		})
	}
	return chunks
}

// matchField returns the value after a "Field:" prefix, or "" when the line
// does not start with the prefix. Matching is case-insensitive.
func matchField(line, prefix string) string {
	if len(line) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(line[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(line[len(prefix):])
}
