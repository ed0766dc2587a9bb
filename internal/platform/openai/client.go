package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/yungbote/agentwriter-backend/internal/pkg/httpx"
	"github.com/yungbote/agentwriter-backend/internal/platform/envutil"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/promptstyle"
)

// ErrEmptyOutput is returned when the model answered without usable text.
var ErrEmptyOutput = errors.New("openai: empty output")

// Usage is the metered consumption of one call.
type Usage struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
	Effort       string
}

// Client is the LLM capability used by every pipeline stage.
type Client interface {
	GenerateText(ctx context.Context, system string, user string) (string, Usage, error)
	// GenerateJSON decodes the model's JSON object answer into out.
	GenerateJSON(ctx context.Context, system string, user string, out any) (Usage, error)
	Embed(ctx context.Context, inputs []string) ([][]float32, Usage, error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	EmbedModel  string
	EmbedDim    int
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
	Effort      string
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:      strings.TrimSpace(envutil.String("OPENAI_API_KEY", "")),
		BaseURL:     strings.TrimSpace(envutil.String("OPENAI_BASE_URL", "")),
		Model:       envutil.String("OPENAI_MODEL", "gpt-4o-mini"),
		EmbedModel:  envutil.String("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		EmbedDim:    envutil.Int("OPENAI_EMBED_DIM", 0),
		Timeout:     envutil.Duration("OPENAI_TIMEOUT", 3*time.Minute),
		MaxRetries:  envutil.Int("OPENAI_MAX_RETRIES", 2),
		Temperature: envutil.Float("OPENAI_TEMPERATURE", 0.7),
		Effort:      strings.TrimSpace(envutil.String("OPENAI_REASONING_EFFORT", "")),
	}
}

type client struct {
	log *logger.Logger
	cfg Config
	api oai.Client
}

func NewClient(log *logger.Logger, cfg Config, extra ...option.RequestOption) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai model is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	log.Info("OpenAI client configured", "model", cfg.Model, "embed_model", cfg.EmbedModel, "effort", cfg.Effort)
	return &client{
		log: log.With("service", "OpenAIClient"),
		cfg: cfg,
		api: oai.NewClient(opts...),
	}, nil
}

func (c *client) complete(ctx context.Context, system, user string, jsonMode bool) (string, Usage, error) {
	mode := "text"
	if jsonMode {
		mode = "json"
	}
	params := oai.ChatCompletionNewParams{
		Model: oai.ChatModel(c.cfg.Model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(promptstyle.ApplySystem(system, mode)),
			oai.UserMessage(user),
		},
	}
	if c.cfg.Effort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(c.cfg.Effort)
	} else {
		params.Temperature = oai.Float(c.cfg.Temperature)
	}
	if jsonMode {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		c.log.Warn("chat completion failed", "model", c.cfg.Model, "error", err, "duration", time.Since(start))
		return "", Usage{}, err
	}
	usage := Usage{
		Model:        c.cfg.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Effort:       c.cfg.Effort,
	}
	if len(resp.Choices) == 0 {
		return "", usage, fmt.Errorf("%w: no choices", ErrEmptyOutput)
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", usage, fmt.Errorf("%w: model refused: %s", ErrEmptyOutput, msg.Refusal)
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return "", usage, ErrEmptyOutput
	}
	c.log.Debug("chat completion",
		"model", c.cfg.Model,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"duration", time.Since(start),
	)
	return text, usage, nil
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, Usage, error) {
	return c.complete(ctx, system, user, false)
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, out any) (Usage, error) {
	text, usage, err := c.complete(ctx, system, user, true)
	if err != nil {
		return usage, err
	}
	if err := json.Unmarshal([]byte(stripFence(text)), out); err != nil {
		return usage, fmt.Errorf("%w: invalid JSON: %v", ErrEmptyOutput, err)
	}
	return usage, nil
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, Usage, error) {
	if len(inputs) == 0 {
		return [][]float32{}, Usage{}, nil
	}
	params := oai.EmbeddingNewParams{
		Input: oai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model: oai.EmbeddingModel(c.cfg.EmbedModel),
	}
	if c.cfg.EmbedDim > 0 {
		params.Dimensions = oai.Int(int64(c.cfg.EmbedDim))
	}
	resp, err := c.api.Embeddings.New(ctx, params)
	if err != nil {
		return nil, Usage{}, err
	}
	usage := Usage{Model: c.cfg.EmbedModel, InputTokens: resp.Usage.PromptTokens}
	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, usage, fmt.Errorf("%w: missing embedding for input %d", ErrEmptyOutput, i)
		}
	}
	return out, usage, nil
}

// Retryable reports whether err is worth another attempt. Rejected requests
// (4xx other than 408/429) and degenerate answers are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyOutput) {
		return false
	}
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return httpx.IsRetryableHTTPStatus(apiErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// StatusCode extracts the provider HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
