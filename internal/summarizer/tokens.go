package summarizer

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	encodingOnce sync.Once
	encoding     tokenizer.Codec
	encodingErr  error
)

// EstimateTokens returns a local best-effort token count using the
// Cl100kBase encoding. It never touches the network; when the encoding
// is unavailable it falls back to a ~4 characters/token heuristic. The
// result is monotonic with text length, which is all the reduction
// budget check needs.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	encodingOnce.Do(func() {
		encoding, encodingErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if encodingErr != nil {
		return heuristicTokens(text)
	}

	ids, _, err := encoding.Encode(text)
	if err != nil {
		return heuristicTokens(text)
	}

	return len(ids)
}

func heuristicTokens(text string) int {
	n := len(text) / 4
	if n == 0 {
		n = 1
	}

	return n
}
