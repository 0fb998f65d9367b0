package collab

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spectra-red/vulnpipe/internal/hostagg"
	"github.com/spectra-red/vulnpipe/internal/scoring"
)

// DefaultGuidanceTimeout bounds a single AI guidance call, per spec.md
// §5 ("The AI guidance call has its own deadline (default 5 s)").
const DefaultGuidanceTimeout = 5 * time.Second

// ErrAIUnavailable mirrors the teacher's embeddings.ErrServiceUnavailable
// sentinel, covering any transport, timeout, or empty-response failure
// from the OpenAI-backed guidance client.
var ErrAIUnavailable = errors.New("collab: AI guidance service unavailable")

// OpenAIGuidanceClient implements AIGuidance atop the OpenAI chat
// completion API, grounded on the teacher's embeddings.Client shape
// (explicit Config, timeout, injected *zap.Logger).
type OpenAIGuidanceClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// OpenAIGuidanceConfig configures an OpenAIGuidanceClient. BaseURL is
// normally left empty (the library's default api.openai.com endpoint);
// tests point it at an httptest server.
type OpenAIGuidanceConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewOpenAIGuidanceClient constructs an OpenAIGuidanceClient.
func NewOpenAIGuidanceClient(cfg OpenAIGuidanceConfig) (*OpenAIGuidanceClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("collab: ai_api_key is required for the openai provider")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultGuidanceTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	var client *openai.Client
	if cfg.BaseURL != "" {
		oaCfg := openai.DefaultConfig(cfg.APIKey)
		oaCfg.BaseURL = cfg.BaseURL
		client = openai.NewClientWithConfig(oaCfg)
	} else {
		client = openai.NewClient(cfg.APIKey)
	}

	return &OpenAIGuidanceClient{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}, nil
}

// Guidance asks the model for a short remediation recommendation for
// score, bounded by the client's configured timeout regardless of ctx's
// own deadline.
func (c *OpenAIGuidanceClient) Guidance(ctx context.Context, score *scoring.VulnerabilityScore, host *hostagg.HostContext) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := buildGuidancePrompt(score, host)

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 200,
	})
	if err != nil {
		c.logger.Warn("ai guidance call failed",
			zap.String("cve_id", score.CveID.String()),
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("%w: request timeout", ErrAIUnavailable)
		}
		return "", fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrAIUnavailable)
	}

	c.logger.Debug("ai guidance generated",
		zap.String("cve_id", score.CveID.String()),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

func buildGuidancePrompt(score *scoring.VulnerabilityScore, host *hostagg.HostContext) string {
	severity := "UNKNOWN"
	if cvss, ok := score.HighestCVSS(); ok {
		severity = string(cvss.Severity)
	}
	hostLabel := ""
	if host != nil {
		hostLabel = host.IP
	}
	return fmt.Sprintf(
		"Vulnerability %s (severity %s, priority %s) was detected on host %s. "+
			"Provide a two-sentence remediation recommendation for a security analyst.",
		score.CveID, severity, score.AIPriority, hostLabel,
	)
}
