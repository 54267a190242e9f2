package openai_tools

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
)

const (
	charsPerToken    = 4
	tokensPerMessage = 3
	tokensPerReply   = 3
	truncatedSuffix  = "..."
)

type encodingEntry struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// encodings caches one load attempt per model, failed ones included, so an
// offline counter does not retry the download on every call.
var encodings sync.Map

var loadEncoding = tiktoken.EncodingForModel

func encodingForModel(model string) (*tiktoken.Tiktoken, error) {
	v, _ := encodings.LoadOrStore(model, &encodingEntry{})
	entry := v.(*encodingEntry)
	entry.once.Do(func() {
		entry.enc, entry.err = loadEncoding(model)
		if entry.err != nil {
			entry.err = fmt.Errorf("failed to get encoding for model %s: %w", model, entry.err)
		}
	})
	return entry.enc, entry.err
}

// CountToken counts the prompt tokens of a chat request the way the
// completions API bills them.
func CountToken(messages []openai.ChatCompletionMessage, model string) (int, error) {
	enc, err := encodingForModel(model)
	if err != nil {
		return 0, err
	}
	total := tokensPerReply
	for _, msg := range messages {
		total += tokensPerMessage
		total += len(enc.Encode(msg.Content, nil, nil))
		total += len(enc.Encode(msg.Role, nil, nil))
		if msg.Name != "" {
			total += len(enc.Encode(msg.Name, nil, nil)) + 1
		}
	}
	return total, nil
}

// EstimateTokens is the length based estimate, one token per four characters
// rounded up.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// Tokenizer counts tokens with the model's BPE encoding and falls back to
// EstimateTokens when no encoding can be loaded.
type Tokenizer struct {
	estimateOnly bool
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// NewEstimator never loads an encoding.
func NewEstimator() *Tokenizer {
	return &Tokenizer{estimateOnly: true}
}

func (t *Tokenizer) Count(text, model string) int {
	if text == "" {
		return 0
	}
	if !t.estimateOnly {
		if enc, err := encodingForModel(model); err == nil {
			return len(enc.Encode(text, nil, nil))
		}
	}
	return EstimateTokens(text)
}

func (t *Tokenizer) CountMessages(messages []openai.ChatCompletionMessage, model string) int {
	if !t.estimateOnly {
		if total, err := CountToken(messages, model); err == nil {
			return total
		}
	}
	total := tokensPerReply
	for _, msg := range messages {
		total += tokensPerMessage + EstimateTokens(msg.Role) + EstimateTokens(msg.Content)
	}
	return total
}

// Truncate keeps text within maxTokens by cutting it to maxTokens*4
// characters and marking the cut with "...". Text within the limit is
// returned unchanged.
func (t *Tokenizer) Truncate(text string, maxTokens int, model string) string {
	if maxTokens <= 0 || t.Count(text, model) <= maxTokens {
		return text
	}
	limit := maxTokens * charsPerToken
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + truncatedSuffix
}
