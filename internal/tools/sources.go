package tools

import (
	"context"
	"sync"
)

// Source is one citation a search tool collected while answering a query.
// Link points at the lesson (or course) the content came from, when known.
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Recorder collects sources for a single query. Each request carries its own
// Recorder through context, so concurrent queries never see each other's
// citations. The zero value is not usable; call NewRecorder.
type Recorder struct {
	mu      sync.Mutex
	sources []Source
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Add records a source, skipping exact duplicates. A nil Recorder ignores
// the call so tools can run outside a recording context.
func (r *Recorder) Add(s Source) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.sources {
		if existing == s {
			return
		}
	}
	r.sources = append(r.sources, s)
}

// Sources returns everything recorded so far, in insertion order.
func (r *Recorder) Sources() []Source {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// recorderKey is an unexported context key for zero-allocation type safety.
type recorderKey struct{}

// WithRecorder attaches a Recorder to the context. Tool handlers retrieve it
// via RecorderFromContext; ai.ToolContext embeds context.Context, so values
// set on the request context are visible inside tool executions.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// RecorderFromContext retrieves the request's Recorder, or nil when the
// context carries none.
func RecorderFromContext(ctx context.Context) *Recorder {
	r, _ := ctx.Value(recorderKey{}).(*Recorder)
	return r
}
