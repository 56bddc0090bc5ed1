package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/repofactor/repofactor/internal/backend"
	"github.com/repofactor/repofactor/internal/prompt"
)

const researchSystem = `You are a research agent helping debug a code integration failure. Analyze the error and logs, reason about the most likely root cause, and propose concrete minimal fixes, best first.`

// BackendResearcher is the reasoning-backed Researcher.
type BackendResearcher struct {
	client backend.Client
	log    *zap.Logger
}

// NewResearcher returns the backend-driven Researcher.
func NewResearcher(client backend.Client, log *zap.Logger) *BackendResearcher {
	return &BackendResearcher{client: client, log: log}
}

// Research asks the backend for fixes to an implementation failure.
func (r *BackendResearcher) Research(ctx context.Context, req ResearchRequest) (*ResearchResult, error) {
	p, err := prompt.Build("research.md", prompt.Vars{
		"error_message":  req.ErrorMessage,
		"execution_logs": strings.Join(req.ExecutionLogs, "\n"),
		"instructions":   req.Instructions,
	})
	if err != nil {
		return nil, fmt.Errorf("building research prompt: %w", err)
	}

	raw, err := r.client.Generate(ctx, backend.Request{System: researchSystem, Prompt: p})
	if err != nil {
		return nil, &CallError{Agent: "research", Err: err}
	}

	var res ResearchResult
	if err := decodeResponse("research", raw, &res); err != nil {
		return nil, err
	}
	normalizeResearch(&res)

	r.log.Info("research complete", zap.Int("solutions", len(res.Solutions)))
	return &res, nil
}

// normalizeResearch assigns order-based ranks to solutions the model left
// unranked so Best() stays well defined.
func normalizeResearch(res *ResearchResult) {
	if res.Solutions == nil {
		res.Solutions = []Solution{}
	}
	for i := range res.Solutions {
		if res.Solutions[i].Rank <= 0 {
			res.Solutions[i].Rank = i + 1
		}
	}
}
