package llm

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// Completion is one model response. Token counts are reported even when the output was cut
// off by the provider's output budget.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	// Truncated is set when the provider stopped because it hit the output token limit.
	Truncated bool
	Model     string
}

// Completer is the model invocation service the pipeline depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (Completion, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (Completion, error) {
	return f(ctx, prompt)
}

// Classify maps a provider error onto the extraction taxonomy: deadline overruns become
// ModelTimeout, everything else ModelError. Errors already classified pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var xe *common.ExtractionError
	if errors.As(err, &xe) {
		return err
	}
	var te interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &te) && te.Timeout()) {
		return common.NewExtractionError(common.KindModelTimeout, "model call exceeded its deadline", err)
	}
	return common.NewExtractionError(common.KindModelError, "model call failed", err)
}
