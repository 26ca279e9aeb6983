package vertex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/docextract/internal/llm"
)

const systemPrompt = "You extract structured data from business documents. " +
	"Follow the output format in the user message exactly and return only JSON."

// Config for the Vertex AI client.
type Config struct {
	ProjectID       string
	Region          string
	Model           string // default gemini-1.5-pro
	Temperature     float32
	MaxOutputTokens int32
	CredentialsFile string // optional; application default credentials otherwise
}

type Client struct {
	cfg    Config
	base   *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("vertex: projectID and region cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	if logger == nil {
		logger = slog.Default()
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := base.GenerativeModel(cfg.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.SetTemperature(cfg.Temperature)
	if cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}
	return &Client{cfg: cfg, base: base, model: model, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.base.Close()
}

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, prompt string) (llm.Completion, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", "vertex",
		"model", c.cfg.Model,
		"region", c.cfg.Region,
		"prompt_len", len(prompt),
	)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.logger.Error("llm.extract.error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, fmt.Errorf("vertex generate content: %w", err)
	}

	out, finish := completionFromResponse(resp, c.cfg.Model)
	if out.Text == "" && !out.Truncated {
		c.logger.Error("llm.extract.empty",
			"req_id", rid, "finish_reason", finish,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, fmt.Errorf("vertex returned no text (finish reason %s)", finish)
	}
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
		"finish_reason", finish,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func completionFromResponse(resp *genai.GenerateContentResponse, model string) (llm.Completion, string) {
	out := llm.Completion{Model: model}
	if resp == nil {
		return out, ""
	}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
	}
	var finish string
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		cand := resp.Candidates[0]
		finish = cand.FinishReason.String()
		out.Truncated = cand.FinishReason == genai.FinishReasonMaxTokens
		if cand.Content != nil {
			var sb strings.Builder
			for _, p := range cand.Content.Parts {
				if txt, ok := p.(genai.Text); ok {
					sb.WriteString(string(txt))
				}
			}
			out.Text = sb.String()
		}
	}
	return out, finish
}
