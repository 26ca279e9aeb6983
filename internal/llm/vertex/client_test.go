package vertex

import (
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
)

func TestCompletionFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text(`{"field_validations": []}`),
			}},
		}},
		UsageMetadata: &genai.UsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 8,
		},
	}

	out, _ := completionFromResponse(resp, "gemini-1.5-pro")
	assert.Equal(t, `{"field_validations": []}`, out.Text)
	assert.Equal(t, 120, out.InputTokens)
	assert.Equal(t, 8, out.OutputTokens)
	assert.False(t, out.Truncated)
	assert.Equal(t, "gemini-1.5-pro", out.Model)
}

func TestCompletionFromResponse_MaxTokens(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonMaxTokens,
			Content:      &genai.Content{Parts: []genai.Part{genai.Text(`{"field_validations": [{"fie`)}},
		}},
	}
	out, _ := completionFromResponse(resp, "m")
	assert.True(t, out.Truncated)
	assert.Equal(t, 0, out.InputTokens)
}
