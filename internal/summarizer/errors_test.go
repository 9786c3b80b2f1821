package summarizer

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   FailureKind
	}{
		{429, RateLimited},
		{408, TransientServer},
		{500, TransientServer},
		{502, TransientServer},
		{503, TransientServer},
		{400, PermanentRequest},
		{401, PermanentAuth},
		{403, PermanentAuth},
		{404, PermanentRequest},
		{422, PermanentRequest},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			apiErr := classifyStatus(tc.status, "message")
			if apiErr.Kind != tc.kind {
				t.Fatalf("status %d classified as %s, want %s", tc.status, apiErr.Kind, tc.kind)
			}
		})
	}
}

func TestKindPredicatesUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", &APIError{Kind: TransientTimeout, Message: "deadline"})

	if !IsTransient(wrapped) {
		t.Fatal("expected wrapped timeout to be transient")
	}
	if IsRateLimited(wrapped) || IsContentFiltered(wrapped) {
		t.Fatal("timeout misclassified")
	}

	if IsTransient(errors.New("plain")) {
		t.Fatal("plain error must not be transient")
	}
}

func TestEstimateTokensMonotonic(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("expected 0 for empty text, got %d", got)
	}

	short := EstimateTokens("one sentence of text.")
	long := EstimateTokens("one sentence of text. and then a good deal more text after it, twice over.")

	if short <= 0 {
		t.Fatalf("expected positive count, got %d", short)
	}
	if long <= short {
		t.Fatalf("expected longer text to count more tokens: short=%d long=%d", short, long)
	}
}
