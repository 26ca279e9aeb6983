package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/docextract/internal/common"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))

	tests := []struct {
		name string
		err  error
		want common.ErrorKind
	}{
		{"deadline", context.DeadlineExceeded, common.KindModelTimeout},
		{"wrapped deadline", fmt.Errorf("openai http error: %w", context.DeadlineExceeded), common.KindModelTimeout},
		{"net timeout", &url.Error{Op: "Post", URL: "http://x", Err: timeoutErr{}}, common.KindModelTimeout},
		{"status error", errors.New("openai status 500: boom"), common.KindModelError},
		{"canceled", context.Canceled, common.KindModelError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, common.KindOf(Classify(tt.err)))
		})
	}
}

func TestClassify_PassesThroughExtractionErrors(t *testing.T) {
	in := common.NewExtractionError(common.KindMalformedJSON, "bad", nil)
	assert.Same(t, in, Classify(in))
}

func TestCompleterFunc(t *testing.T) {
	var c Completer = CompleterFunc(func(ctx context.Context, prompt string) (Completion, error) {
		return Completion{Text: prompt, InputTokens: 3}, nil
	})
	out, err := c.Complete(context.Background(), "hi")
	assert.NoError(t, err)
	assert.Equal(t, "hi", out.Text)
	assert.Equal(t, 3, out.InputTokens)
}
