// Package chat implements the conversational agent that answers questions
// about course materials. The model decides per query whether to call the
// course lookup tools; sources collected during tool calls are returned
// alongside the answer.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/session"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/tools"
)

const (
	// fallbackResponseMessage is returned when the model produces an empty
	// response with no tool requests.
	fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

	// errorResponseMessage is returned when generation fails outright. The
	// failed exchange is not committed to history.
	errorResponseMessage = "I encountered an error while processing your request. Please try again."
)

// systemPrompt steers the model's tool usage: content questions go through
// search_course_content, structure questions through get_course_outline, and
// general knowledge questions are answered directly.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content, with tools for searching course information.

Tool usage:
- search_course_content: use for questions about specific course content or detailed educational materials.
- get_course_outline: use for questions about course structure, such as what lessons a course contains. When answering from an outline, include the course title, course link, and every lesson's number and title.
- Up to two tool calls per question. Combine their results instead of searching again.
- If a tool returns no results, say so clearly. Do not invent content.

Responses:
- Answer general knowledge questions from your own knowledge without tools.
- Be brief, clear, and focused on what was asked.
- No meta-commentary about searching or your reasoning process.`

// Sentinel errors for agent construction and execution.
var (
	ErrInvalidQuery = errors.New("query must not be empty")
)

// Response is the complete result of answering one query.
type Response struct {
	Answer  string
	Sources []tools.Source
}

// Config contains all required parameters for the agent.
type Config struct {
	Genkit   *genkit.Genkit
	Sessions *session.Store
	Logger   *slog.Logger
	Tools    []ai.Tool // pre-registered via tools.Register

	// ModelName is the provider-qualified model name,
	// e.g. "googleai/gemini-2.5-flash".
	ModelName string

	// MaxToolRounds caps how many rounds of tool calls the model may make
	// per query. Zero means the default of 2.
	MaxToolRounds int

	// Temperature and MaxOutputTokens tune generation. Zero values leave
	// the model defaults in place.
	Temperature     float64
	MaxOutputTokens int
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Tools) == 0 {
		return errors.New("at least one tool is required")
	}
	return nil
}

// Agent answers course questions with LLM generation and tool calling.
//
// All configuration is captured immutably at construction, so an Agent is
// safe for concurrent use.
type Agent struct {
	modelName       string
	maxToolRounds   int
	temperature     float64
	maxOutputTokens int

	g         *genkit.Genkit
	sessions  *session.Store
	logger    *slog.Logger
	toolRefs  []ai.ToolRef // cached, ai.Tool implements ai.ToolRef
	toolNames string       // cached comma-separated for logging
}

// New creates an Agent.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxToolRounds := cfg.MaxToolRounds
	if maxToolRounds <= 0 {
		maxToolRounds = 2
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
		names[i] = t.Name()
	}

	a := &Agent{
		modelName:       cfg.ModelName,
		maxToolRounds:   maxToolRounds,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		g:               cfg.Genkit,
		sessions:        cfg.Sessions,
		logger:          cfg.Logger,
		toolRefs:        toolRefs,
		toolNames:       strings.Join(names, ", "),
	}

	a.logger.Info("chat agent initialized",
		"model", a.modelName,
		"tools", a.toolNames,
		"maxToolRounds", a.maxToolRounds)

	return a, nil
}

// Answer answers one query within a session. The session's retained history
// is prepended to the prompt, and the exchange is committed to history only
// after a successful answer, so a failed generation never pollutes context
// for the next turn.
//
// Generation failures degrade to an apology answer rather than an error;
// the error return covers invalid input only.
func (a *Agent) Answer(ctx context.Context, sessionID uuid.UUID, query string) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidQuery
	}

	a.logger.Debug("answering query", "session_id", sessionID, "query_length", len(query))

	// Each request gets its own source recorder; tool handlers reach it
	// through the context, so concurrent queries keep separate citations.
	recorder := tools.NewRecorder()
	ctx = tools.WithRecorder(ctx, recorder)

	// Deep copy history: genkit's renderMessages modifies message content
	// in place, which races when concurrent requests share history objects
	// (observed with github.com/firebase/genkit/go v1.4.0).
	messages := deepCopyMessages(a.sessions.History(sessionID))
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(query)))

	// The tool loop is driven here rather than inside genkit.Generate so
	// that exhausting the round budget forces a final answer from whatever
	// the tools returned, instead of failing the whole query. The last
	// iteration generates with tools disabled, so the model cannot request
	// another round and must answer from the accumulated context.
	var answer string
	for round := 0; ; round++ {
		withTools := round < a.maxToolRounds

		opts := a.generateOpts(messages)
		if withTools {
			opts = append(opts, ai.WithTools(a.toolRefs...), ai.WithReturnToolRequests(true))
		}

		resp, err := genkit.Generate(ctx, a.g, opts...)
		if err != nil {
			a.logger.Error("generation failed", "session_id", sessionID, "error", err)
			return &Response{Answer: errorResponseMessage}, nil
		}

		requests := resp.ToolRequests()
		if !withTools || len(requests) == 0 {
			answer = resp.Text()
			break
		}

		if round == a.maxToolRounds-1 {
			a.logger.Warn("tool round budget exhausted, forcing final answer",
				"session_id", sessionID, "rounds", a.maxToolRounds)
		}

		toolMsg, err := a.runTools(ctx, requests)
		if err != nil {
			a.logger.Error("tool execution failed", "session_id", sessionID, "error", err)
			return &Response{Answer: errorResponseMessage}, nil
		}
		messages = append(messages, resp.Message, toolMsg)
	}

	if strings.TrimSpace(answer) == "" {
		a.logger.Warn("model returned empty response", "session_id", sessionID)
		answer = fallbackResponseMessage
	}

	a.sessions.AddExchange(sessionID, query, answer)

	sources := recorder.Sources()
	a.logger.Debug("query answered",
		"session_id", sessionID,
		"answer_length", len(answer),
		"sources", len(sources))

	return &Response{Answer: answer, Sources: sources}, nil
}

// generateOpts assembles the generate options shared by every round.
func (a *Agent) generateOpts(messages []*ai.Message) []ai.GenerateOption {
	opts := []ai.GenerateOption{
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
	}
	if a.modelName != "" {
		opts = append(opts, ai.WithModelName(a.modelName))
	}

	var genCfg ai.GenerationCommonConfig
	hasCfg := false
	if a.temperature > 0 {
		genCfg.Temperature = a.temperature
		hasCfg = true
	}
	if a.maxOutputTokens > 0 {
		genCfg.MaxOutputTokens = a.maxOutputTokens
		hasCfg = true
	}
	if hasCfg {
		opts = append(opts, ai.WithConfig(&genCfg))
	}
	return opts
}

// runTools executes one round of tool requests and packs the outputs into a
// single tool-role message. Ref is copied onto each response so genkit can
// correlate it with its request. Tool handlers report lookup misses as
// normal string output; an error here means the tool itself failed (for
// example the store is unreachable).
func (a *Agent) runTools(ctx context.Context, requests []*ai.ToolRequest) (*ai.Message, error) {
	parts := make([]*ai.Part, 0, len(requests))
	for _, req := range requests {
		tool := genkit.LookupTool(a.g, req.Name)
		if tool == nil {
			return nil, fmt.Errorf("model requested unknown tool %q", req.Name)
		}

		a.logger.Debug("running tool", "tool", req.Name)
		output, err := tool.RunRaw(ctx, req.Input)
		if err != nil {
			return nil, fmt.Errorf("running tool %q: %w", req.Name, err)
		}

		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: output,
		}))
	}
	return ai.NewMessage(ai.RoleTool, nil, parts...), nil
}

// String identifies the agent in logs.
func (a *Agent) String() string {
	return fmt.Sprintf("chat.Agent(model=%s, tools=[%s])", a.modelName, a.toolNames)
}
