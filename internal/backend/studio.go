package backend

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/repofactor/repofactor/internal/config"
)

// Model identifies a hosted model on the studio inference endpoint.
type Model string

const (
	ModelCodeLlama34B   Model = "codellama/CodeLlama-34b-Instruct-hf"
	ModelDeepseekCoder  Model = "deepseek-ai/deepseek-coder-33b-instruct"
	ModelStarcoder2     Model = "bigcode/starcoder2-15b"
	ModelLlama3_70B     Model = "meta-llama/Meta-Llama-3-70B-Instruct"
	ModelMixtral8x7B    Model = "mistralai/Mixtral-8x7B-Instruct-v0.1"
	ModelQwen72B        Model = "Qwen/Qwen2-72B-Instruct"
	ModelPhindCodeLlama Model = "Phind/Phind-CodeLlama-34B-v2"
)

// DefaultModel is used when neither config nor the request names a model.
const DefaultModel = ModelCodeLlama34B

// Models lists every model the studio endpoint serves.
var Models = []Model{
	ModelCodeLlama34B,
	ModelDeepseekCoder,
	ModelStarcoder2,
	ModelLlama3_70B,
	ModelMixtral8x7B,
	ModelQwen72B,
	ModelPhindCodeLlama,
}

// IsValidModel reports whether s names a servable model.
func IsValidModel(s string) bool {
	for _, m := range Models {
		if string(m) == s {
			return true
		}
	}
	return false
}

// contentGenerator is the slice of the langchaingo client Studio needs.
// Tests substitute a fake.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Studio is a Client backed by an OpenAI-compatible completion API hosted on
// a studio endpoint. It enforces the monthly call quota and retries transient
// failures with exponential backoff.
type Studio struct {
	llm         contentGenerator
	log         *zap.Logger
	model       Model
	maxTokens   int
	temperature float64
	timeout     time.Duration

	retryInitial time.Duration
	retryMax     time.Duration

	mu        sync.Mutex
	quota     int
	callsMade int
}

// NewStudio builds a Studio client from backend configuration. The API key is
// read from the environment variable the config names, never from the config
// file itself.
func NewStudio(cfg config.Backend, log *zap.Logger) (*Studio, error) {
	if cfg.StudioURL == "" {
		return nil, fmt.Errorf("backend: studio_url not configured")
	}

	model := Model(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	if !IsValidModel(string(model)) {
		return nil, fmt.Errorf("backend: unknown model %q (valid: %s)", cfg.Model, modelList())
	}

	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("backend: %s not set in environment", cfg.APIKeyEnv)
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("backend: bad timeout %q: %w", cfg.Timeout, err)
	}

	llm, err := openai.New(
		openai.WithToken(key),
		openai.WithModel(string(model)),
		openai.WithBaseURL(strings.TrimRight(cfg.StudioURL, "/")+"/api/v1"),
	)
	if err != nil {
		return nil, fmt.Errorf("backend: building studio client: %w", err)
	}

	return &Studio{
		llm:          llm,
		log:          log,
		model:        model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		timeout:      timeout,
		retryInitial: 4 * time.Second,
		retryMax:     10 * time.Second,
		quota:        cfg.MonthlyQuota,
	}, nil
}

// Name identifies the backend and its default model.
func (s *Studio) Name() string {
	return "studio/" + string(s.model)
}

// RemainingQuota returns how many calls are left this month. The counter is
// per process; the hosted quota is the authority.
func (s *Studio) RemainingQuota() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quota - s.callsMade
}

// Generate sends one prompt to the studio endpoint and returns the completion
// text. Transient failures are retried up to three times with exponential
// backoff between 4s and 10s; quota exhaustion and context cancellation are
// not retried.
func (s *Studio) Generate(ctx context.Context, req Request) (string, error) {
	if err := s.checkQuota(); err != nil {
		return "", err
	}

	msgs, opts, err := s.buildCall(req)
	if err != nil {
		return "", err
	}

	expo := backoff.NewExponentialBackOff()
	if s.retryInitial > 0 {
		expo.InitialInterval = s.retryInitial
	}
	if s.retryMax > 0 {
		expo.MaxInterval = s.retryMax
	}

	text, err := backoff.Retry(ctx, func() (string, error) {
		callCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		resp, err := s.llm.GenerateContent(callCtx, msgs, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return "", backoff.Permanent(ctx.Err())
			}
			return "", fmt.Errorf("studio generate: %w", err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return "", fmt.Errorf("studio returned no choices")
		}
		return resp.Choices[0].Content, nil
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(3),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.log.Warn("studio call failed, retrying",
				zap.Error(err),
				zap.Duration("wait", wait))
		}),
	)
	if err != nil {
		return "", err
	}

	s.noteCall()
	return text, nil
}

func (s *Studio) buildCall(req Request) ([]llms.MessageContent, []llms.CallOption, error) {
	var msgs []llms.MessageContent
	if req.System != "" {
		msgs = append(msgs, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(req.System)},
		})
	}
	msgs = append(msgs, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(req.Prompt)},
	})

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = s.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = s.temperature
	}

	opts := []llms.CallOption{
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(temperature),
	}
	if req.Model != "" {
		if !IsValidModel(req.Model) {
			return nil, nil, fmt.Errorf("backend: unknown model %q (valid: %s)", req.Model, modelList())
		}
		opts = append(opts, llms.WithModel(req.Model))
	}
	return msgs, opts, nil
}

func (s *Studio) checkQuota() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quota > 0 && s.callsMade >= s.quota {
		return fmt.Errorf("%w (%d calls)", ErrQuotaExhausted, s.quota)
	}
	return nil
}

func (s *Studio) noteCall() {
	s.mu.Lock()
	s.callsMade++
	s.mu.Unlock()
}

func modelList() string {
	names := make([]string, len(Models))
	for i, m := range Models {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
