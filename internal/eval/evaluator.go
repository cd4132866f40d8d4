package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"research-chatbot/internal/model"
)

// Answer is what the chat pipeline produced for one evaluation question.
// Evidence carries the citation excerpts the answer was grounded on; it is
// empty for math and unsupported turns.
type Answer struct {
	Text     string
	ToolUsed string
	Evidence string
}

// Runner answers a single question through the full routing pipeline. Each
// evaluation case runs in a fresh session so cases cannot contaminate each
// other's context.
type Runner interface {
	Answer(ctx context.Context, question string) (Answer, error)
}

// Summary aggregates one evaluation run. Mean scores cover only cases whose
// metric could be computed.
type Summary struct {
	Cases               int                `json:"cases"`
	FaithfulnessMean    *float64           `json:"faithfulness_mean"`
	FaithfulnessScored  int                `json:"faithfulness_scored"`
	RelevanceMean       *float64           `json:"relevance_mean"`
	RelevanceScored     int                `json:"relevance_scored"`
	RoutingAccuracy     *float64           `json:"routing_accuracy"`
	RoutingScored       int                `json:"routing_scored"`
	AccuracyByCategory  map[string]float64 `json:"routing_accuracy_by_category,omitempty"`
	FailedCases         int                `json:"failed_cases"`
	StartedAt           time.Time          `json:"started_at"`
	DurationMillis      int64              `json:"duration_ms"`
}

// Evaluator scores the chat pipeline against a labeled dataset.
type Evaluator struct {
	runner Runner
	judge  Judge
	log    *zap.Logger
}

func NewEvaluator(runner Runner, judge Judge, log *zap.Logger) *Evaluator {
	return &Evaluator{runner: runner, judge: judge, log: log}
}

// Run evaluates every case. A failing case is recorded and the batch
// continues; a failing judge leaves that metric nil on the case.
func (e *Evaluator) Run(ctx context.Context, cases []model.EvalCase) ([]model.EvalResult, Summary, error) {
	if len(cases) == 0 {
		return nil, Summary{}, fmt.Errorf("evaluation dataset is empty")
	}

	started := time.Now()
	results := make([]model.EvalResult, 0, len(cases))
	for _, c := range cases {
		select {
		case <-ctx.Done():
			return nil, Summary{}, ctx.Err()
		default:
		}
		results = append(results, e.evaluateCase(ctx, c))
	}

	summary := Summarize(results)
	summary.StartedAt = started
	summary.DurationMillis = time.Since(started).Milliseconds()
	return results, summary, nil
}

func (e *Evaluator) evaluateCase(ctx context.Context, c model.EvalCase) model.EvalResult {
	result := model.EvalResult{
		CaseID:         c.ID,
		Question:       c.Question,
		ExpectedAnswer: c.ExpectedAnswer,
		Category:       c.Category,
		CreatedAt:      time.Now(),
	}

	answer, err := e.runner.Answer(ctx, c.Question)
	if err != nil {
		e.log.Warn("evaluation case failed",
			zap.String("case_id", c.ID), zap.Error(err))
		result.Reasoning = fmt.Sprintf("pipeline error: %v", err)
		return result
	}
	result.Answer = answer.Text
	result.ToolUsed = answer.ToolUsed

	var notes []string

	if answer.Evidence != "" {
		score, reason, err := e.judge.Faithfulness(ctx, answer.Text, answer.Evidence)
		if err != nil {
			e.log.Warn("faithfulness judge failed",
				zap.String("case_id", c.ID), zap.Error(err))
			notes = append(notes, fmt.Sprintf("faithfulness unscored: %v", err))
		} else {
			result.Faithfulness = &score
			notes = append(notes, "faithfulness: "+reason)
		}
	}

	score, reason, err := e.judge.Relevance(ctx, c.Question, answer.Text)
	if err != nil {
		e.log.Warn("relevance judge failed",
			zap.String("case_id", c.ID), zap.Error(err))
		notes = append(notes, fmt.Sprintf("relevance unscored: %v", err))
	} else {
		result.Relevance = &score
		notes = append(notes, "relevance: "+reason)
	}

	if c.ExpectedTool != "" {
		correct := answer.ToolUsed == c.ExpectedTool
		result.RoutingCorrect = &correct
	}

	result.Reasoning = strings.Join(notes, "; ")
	return result
}

// Summarize computes mean scores and routing accuracy over a result set.
func Summarize(results []model.EvalResult) Summary {
	s := Summary{Cases: len(results)}

	var faithSum, relSum float64
	var routingHits int
	hitsByCategory := map[string]int{}
	totalByCategory := map[string]int{}

	for _, r := range results {
		if r.Answer == "" && r.ToolUsed == "" {
			s.FailedCases++
		}
		if r.Faithfulness != nil {
			faithSum += *r.Faithfulness
			s.FaithfulnessScored++
		}
		if r.Relevance != nil {
			relSum += *r.Relevance
			s.RelevanceScored++
		}
		if r.RoutingCorrect != nil {
			s.RoutingScored++
			category := r.Category
			if category == "" {
				category = "uncategorized"
			}
			totalByCategory[category]++
			if *r.RoutingCorrect {
				routingHits++
				hitsByCategory[category]++
			}
		}
	}

	if s.FaithfulnessScored > 0 {
		mean := faithSum / float64(s.FaithfulnessScored)
		s.FaithfulnessMean = &mean
	}
	if s.RelevanceScored > 0 {
		mean := relSum / float64(s.RelevanceScored)
		s.RelevanceMean = &mean
	}
	if s.RoutingScored > 0 {
		accuracy := float64(routingHits) / float64(s.RoutingScored)
		s.RoutingAccuracy = &accuracy
		s.AccuracyByCategory = make(map[string]float64, len(totalByCategory))
		for category, total := range totalByCategory {
			s.AccuracyByCategory[category] = float64(hitsByCategory[category]) / float64(total)
		}
	}
	return s
}

// LoadDataset reads the JSON case list at path. When the file does not exist
// a small starter dataset is written there first, so a fresh deployment can
// run an evaluation immediately.
func LoadDataset(path string) ([]model.EvalCase, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeSampleDataset(path); err != nil {
			return nil, err
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset failed: %w", err)
	}

	var cases []model.EvalCase
	if err := json.Unmarshal(raw, &cases); err != nil {
		return nil, fmt.Errorf("decode dataset failed: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("dataset %s contains no cases", path)
	}
	return cases, nil
}

func writeSampleDataset(path string) error {
	sample := []model.EvalCase{
		{ID: "math-percent", Question: "Calculate 15% of 250000", ExpectedAnswer: "37500", ExpectedTool: "math", Category: "math"},
		{ID: "math-power", Question: "What is 2^10?", ExpectedAnswer: "1024", ExpectedTool: "math", Category: "math"},
		{ID: "rag-basic", Question: "What does the ingested corpus say about transformer attention?", ExpectedTool: "rag", Category: "retrieval"},
		{ID: "web-current", Question: "What were the major AI announcements this week?", ExpectedTool: "web_search", Category: "web"},
		{ID: "unsupported", Question: "Write me a poem about the ocean", ExpectedTool: "unsupported", Category: "out_of_scope"},
	}

	raw, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sample dataset failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dataset directory failed: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write sample dataset failed: %w", err)
	}
	return nil
}
