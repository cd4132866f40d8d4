package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"research-chatbot/internal/eval"
	"research-chatbot/internal/model"
	"research-chatbot/internal/repository"
)

// EvalService runs the evaluation harness over the configured dataset and
// persists per-case results.
type EvalService struct {
	chat        *ChatService
	judge       eval.Judge
	results     *repository.EvalResultRepository
	datasetPath string
	log         *zap.Logger
}

func NewEvalService(
	chat *ChatService,
	judge eval.Judge,
	results *repository.EvalResultRepository,
	datasetPath string,
	log *zap.Logger,
) *EvalService {
	return &EvalService{
		chat:        chat,
		judge:       judge,
		results:     results,
		datasetPath: datasetPath,
		log:         log,
	}
}

// Run evaluates the given cases, falling back to the configured dataset file
// when none are supplied, and stores the results. Result persistence failures
// are logged but do not abort the run.
func (s *EvalService) Run(ctx context.Context, cases []model.EvalCase) ([]model.EvalResult, eval.Summary, error) {
	if len(cases) == 0 {
		loaded, err := eval.LoadDataset(s.datasetPath)
		if err != nil {
			return nil, eval.Summary{}, err
		}
		cases = loaded
	}

	evaluator := eval.NewEvaluator(&pipelineRunner{chat: s.chat}, s.judge, s.log)
	results, summary, err := evaluator.Run(ctx, cases)
	if err != nil {
		return nil, eval.Summary{}, err
	}

	for i := range results {
		if err := s.results.Create(&results[i]); err != nil {
			s.log.Warn("persist eval result failed",
				zap.String("case_id", results[i].CaseID), zap.Error(err))
		}
	}
	return results, summary, nil
}

func (s *EvalService) RecentResults(ctx context.Context, limit int) ([]model.EvalResult, error) {
	return s.results.ListRecent(limit)
}

// pipelineRunner answers each case through the full chat pipeline in a fresh
// session, so evaluation turns never contaminate each other's context.
type pipelineRunner struct {
	chat *ChatService
}

func (r *pipelineRunner) Answer(ctx context.Context, question string) (eval.Answer, error) {
	session, err := r.chat.CreateSession(ctx, "eval-harness")
	if err != nil {
		return eval.Answer{}, err
	}

	resp, err := r.chat.Chat(ctx, ChatRequest{SessionID: session.SessionID, Query: question})
	if err != nil {
		return eval.Answer{}, err
	}

	var evidence strings.Builder
	for i, c := range resp.Citations {
		if i > 0 {
			evidence.WriteString("\n---\n")
		}
		evidence.WriteString(c.Excerpt)
	}
	return eval.Answer{
		Text:     resp.Response,
		ToolUsed: resp.ToolUsed,
		Evidence: evidence.String(),
	}, nil
}
