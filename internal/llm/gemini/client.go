package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/docextract/internal/llm"
)

const systemPrompt = "You extract structured data from business documents. " +
	"Follow the output format in the user message exactly and return only JSON."

// Config for the Gemini API client.
type Config struct {
	APIKey          string // if empty, the SDK reads GOOGLE_API_KEY / GEMINI_API_KEY
	Model           string // default gemini-2.5-flash
	Temperature     float32
	MaxOutputTokens int32
	// BaseURL overrides the API endpoint; used against local test servers.
	BaseURL string
}

type Client struct {
	cfg    Config
	client *genai.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{cfg: cfg, client: client, logger: logger}, nil
}

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, prompt string) (llm.Completion, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", "gemini",
		"model", c.cfg.Model,
		"prompt_len", len(prompt),
	)

	temp := c.cfg.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:       &temp,
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	if c.cfg.MaxOutputTokens > 0 {
		config.MaxOutputTokens = c.cfg.MaxOutputTokens
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), config)
	if err != nil {
		c.logger.Error("llm.extract.error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, fmt.Errorf("gemini generate content: %w", err)
	}

	out, finish := completionFromResponse(resp, c.cfg.Model)
	if out.Text == "" && !out.Truncated {
		c.logger.Error("llm.extract.empty",
			"req_id", rid, "finish_reason", finish,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, fmt.Errorf("gemini returned no text (finish reason %q)", finish)
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
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	var finish string
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		cand := resp.Candidates[0]
		finish = string(cand.FinishReason)
		out.Truncated = cand.FinishReason == genai.FinishReasonMaxTokens
		if cand.Content != nil {
			var sb strings.Builder
			for _, p := range cand.Content.Parts {
				if p != nil && !p.Thought {
					sb.WriteString(p.Text)
				}
			}
			out.Text = sb.String()
		}
	}
	return out, finish
}
