package agent

import (
	"context"

	"github.com/repofactor/repofactor/internal/backend"
)

// fakeClient scripts backend responses in order; the last response repeats
// once the script runs out.
type fakeClient struct {
	responses []string
	err       error
	requests  []backend.Request
}

func (f *fakeClient) Generate(ctx context.Context, req backend.Request) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	i := len(f.requests) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func (f *fakeClient) Name() string { return "fake" }
