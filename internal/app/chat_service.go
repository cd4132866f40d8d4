package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"research-chatbot/internal/memory"
	"research-chatbot/internal/metrics"
	"research-chatbot/internal/model"
	"research-chatbot/internal/repository"
	"research-chatbot/internal/retrieval"
	"research-chatbot/internal/tool"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrSessionNotFound = memory.ErrSessionNotFound
)

type ChatRequest struct {
	SessionID string
	Query     string
}

type ChatResponse struct {
	SessionID          string           `json:"session_id"`
	Response           string           `json:"response"`
	ToolUsed           string           `json:"tool_used"`
	Citations          []model.Citation `json:"citations"`
	RoutingExplanation string           `json:"routing_explanation"`
}

// SessionStats summarizes one session's activity.
type SessionStats struct {
	SessionID    string         `json:"session_id"`
	UserID       string         `json:"user_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	TurnCount    int64          `json:"turn_count"`
	ToolUsage    map[string]int `json:"tool_usage"`
	MemoryWindow int            `json:"memory_window"`
}

// ChatService runs one chat turn end to end: serialize the session, load the
// context window, route, execute the chosen tool with fallback, then append
// the resolved turn. A turn is recorded only once fully resolved, so a failed
// or cancelled request leaves no partial state in memory.
type ChatService struct {
	memory *memory.Manager
	router *tool.Router
	tools  map[tool.Name]tool.Tool
	turns  *repository.TurnRepository
	log    *zap.Logger
}

func NewChatService(
	mem *memory.Manager,
	router *tool.Router,
	tools []tool.Tool,
	turns *repository.TurnRepository,
	log *zap.Logger,
) *ChatService {
	byName := make(map[tool.Name]tool.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	return &ChatService{
		memory: mem,
		router: router,
		tools:  byName,
		turns:  turns,
		log:    log,
	}
}

func (s *ChatService) CreateSession(ctx context.Context, userID string) (*model.Session, error) {
	return s.memory.CreateSession(ctx, userID)
}

// DeleteSession removes a session together with its turns and cached window.
func (s *ChatService) DeleteSession(ctx context.Context, sessionID string) error {
	return s.memory.DeleteSession(ctx, sessionID)
}

func (s *ChatService) History(ctx context.Context, sessionID string, limit int) ([]model.Turn, error) {
	return s.memory.History(ctx, sessionID, limit)
}

func (s *ChatService) Stats(ctx context.Context, sessionID string) (*SessionStats, error) {
	session, err := s.memory.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	count, err := s.turns.CountBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	usage, err := s.turns.ToolUsage(sessionID)
	if err != nil {
		return nil, err
	}

	return &SessionStats{
		SessionID:    session.SessionID,
		UserID:       session.UserID,
		CreatedAt:    session.CreatedAt,
		LastActivity: session.LastActivity,
		TurnCount:    count,
		ToolUsage:    usage,
		MemoryWindow: s.memory.Window(),
	}, nil
}

func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidInput)
	}
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	if _, err := s.memory.GetSession(ctx, req.SessionID); err != nil {
		return nil, err
	}

	unlock := s.memory.Lock(req.SessionID)
	defer unlock()

	turns, err := s.memory.Context(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session context: %w", err)
	}
	conv := tool.ConvContext{Turns: turns}

	decision, err := s.router.Route(ctx, query, conv)
	if err != nil {
		return nil, fmt.Errorf("route query: %w", err)
	}
	conv.Retrieval = decision.Retrieval
	if decision.Retrieval != nil {
		metrics.RetrievedChunks.Observe(float64(len(decision.Retrieval.Chunks)))
	}

	started := time.Now()
	result, usedTool, explanation := s.execute(ctx, decision, query, conv)

	// A cancelled request must not leave a half-recorded exchange behind.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics.TurnsTotal.WithLabelValues(string(usedTool)).Inc()
	metrics.TurnDuration.WithLabelValues(string(usedTool)).Observe(time.Since(started).Seconds())

	turn := &model.Turn{
		SessionID: req.SessionID,
		Query:     query,
		Response:  result.Answer,
		ToolUsed:  string(usedTool),
		CreatedAt: time.Now(),
	}
	turn.SetCitations(result.Citations)
	if err := s.memory.Append(ctx, turn); err != nil {
		return nil, fmt.Errorf("record turn: %w", err)
	}

	citations := result.Citations
	if citations == nil {
		citations = []model.Citation{}
	}
	return &ChatResponse{
		SessionID:          req.SessionID,
		Response:           result.Answer,
		ToolUsed:           string(usedTool),
		Citations:          citations,
		RoutingExplanation: explanation,
	}, nil
}

// execute runs the routed tool and degrades along the remaining chain when it
// fails, ending at the unsupported refusal. It always produces an answer.
func (s *ChatService) execute(ctx context.Context, decision tool.Decision, query string, conv tool.ConvContext) (tool.Result, tool.Name, string) {
	explanation := decision.Reasoning

	current := decision.Tool
	for {
		t, ok := s.tools[current]
		if !ok {
			break
		}

		result, err := t.Execute(ctx, query, conv)
		if err == nil {
			return result, current, explanation
		}

		metrics.ToolErrorsTotal.WithLabelValues(string(current)).Inc()
		s.log.Warn("tool execution failed, degrading",
			zap.String("tool", string(current)),
			zap.Error(err))

		if current == tool.NameMath {
			// Surface the calculation problem instead of a generic refusal.
			return tool.Result{
				Answer:    "I couldn't complete that calculation: " + err.Error(),
				Citations: []model.Citation{},
			}, tool.NameMath, explanation + "; calculation failed"
		}

		next, note := s.fallbackFor(current, err)
		if next == "" {
			break
		}
		explanation += "; " + note
		// The probe result belongs to the failed tool only.
		conv.Retrieval = nil
		current = next
	}

	refusal, _ := tool.NewUnsupportedTool().Execute(ctx, query, conv)
	return refusal, tool.NameUnsupported, explanation + "; all applicable tools failed"
}

func (s *ChatService) fallbackFor(failed tool.Name, err error) (tool.Name, string) {
	if failed != tool.NameRAG {
		return "", ""
	}
	if _, ok := s.tools[tool.NameWebSearch]; !ok {
		return "", ""
	}
	if errors.Is(err, retrieval.ErrRetrievalUnavailable) {
		return tool.NameWebSearch, "local evidence vanished; degrading to web search"
	}
	if errors.Is(err, retrieval.ErrNoEvidenceFound) {
		return tool.NameWebSearch, "no local evidence above threshold; degrading to web search"
	}
	return tool.NameWebSearch, "rag failed; degrading to web search"
}
