package tool

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"research-chatbot/internal/retrieval"
)

// Decision is the router's classification of one query. When Tool is NameRAG,
// Retrieval holds the probe result for the RAG tool to reuse.
type Decision struct {
	Tool      Name
	Retrieval *retrieval.Result
	Reasoning string
}

// Router classifies a query into a tool via an explicit priority chain with
// short-circuit evaluation:
//
//	1. arithmetic pattern          -> math
//	2. retrieval probe hits        -> rag
//	3. web search configured       -> web_search
//	4. otherwise                   -> unsupported
//
// At most one tool executes per turn; web search is only reached when the
// probe comes back empty. The router never fails a query: every input
// resolves to some tool, with unsupported as the terminal fallback.
type Router struct {
	retriever  *retrieval.Retriever
	topK       int
	threshold  float64
	webEnabled bool
	log        *zap.Logger
}

func NewRouter(retriever *retrieval.Retriever, topK int, threshold float64, webEnabled bool, log *zap.Logger) *Router {
	return &Router{
		retriever:  retriever,
		topK:       topK,
		threshold:  threshold,
		webEnabled: webEnabled,
		log:        log,
	}
}

// Route is deterministic given the query, context, and chunk store state.
func (r *Router) Route(ctx context.Context, query string, conv ConvContext) (Decision, error) {
	if IsArithmetic(query) {
		return Decision{
			Tool:      NameMath,
			Reasoning: "query contains an arithmetic expression; routing to calculator",
		}, nil
	}

	result, err := r.retriever.Retrieve(ctx, query, r.topK, r.threshold)
	switch {
	case err == nil && !result.Empty():
		return Decision{
			Tool:      NameRAG,
			Retrieval: &result,
			Reasoning: "local knowledge base has relevant documents; routing to rag",
		}, nil
	case err != nil && !errors.Is(err, retrieval.ErrRetrievalUnavailable):
		// Embedding or index failure: the probe could not run. Degrade along
		// the chain rather than failing the turn.
		r.log.Warn("routing probe failed, continuing fallback chain", zap.Error(err))
	}

	if r.webEnabled {
		return Decision{
			Tool:      NameWebSearch,
			Reasoning: "no local evidence above threshold; routing to web search",
		}, nil
	}

	return Decision{
		Tool:      NameUnsupported,
		Reasoning: "no local evidence and no web search configured; cannot answer",
	}, nil
}
