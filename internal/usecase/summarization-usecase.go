package usecase

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sourcegraph/conc/iter"
)

const (
	SummaryFormatParagraph = "paragraph"
	SummaryFormatBullet    = "bullet"

	summarizerSystemPrompt = "You write faithful, concise summaries."
	maxSummaryGoroutines   = 4
)

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

type SummaryOptions struct {
	MaxLength         int
	PreserveKeyPoints bool
	Format            string
}

type SummarizationUsecaseDeps struct {
	AI       Completer
	Settings SettingsProvider
}

type SummarizationUsecase struct {
	SummarizationUsecaseDeps
}

func NewSummarizationUsecase(deps SummarizationUsecaseDeps) *SummarizationUsecase {
	return &SummarizationUsecase{
		SummarizationUsecaseDeps: deps,
	}
}

// DefaultOptions reads the summary length from the current settings.
func (s *SummarizationUsecase) DefaultOptions() SummaryOptions {
	return SummaryOptions{
		MaxLength:         s.Settings.Settings().SummaryMaxLength,
		PreserveKeyPoints: true,
		Format:            SummaryFormatParagraph,
	}
}

// Summarize shortens text with the AI model. Short text is returned as is and
// any AI failure falls back to BasicSummarize.
func (s *SummarizationUsecase) Summarize(ctx context.Context, text string, opts SummaryOptions) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = s.DefaultOptions().MaxLength
	}
	if utf8.RuneCountInString(text) < opts.MaxLength {
		return text
	}

	settings := s.Settings.Settings()
	completion, err := s.AI.Complete(ctx, CompletionRequest{
		APIKey:       settings.APIKey,
		Model:        settings.ModelName,
		SystemPrompt: summarizerSystemPrompt,
		Query:        BuildSummarizationPrompt(text, opts),
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
		TopP:         settings.TopP,
	})
	if err != nil {
		log.Printf("failed to summarize with ai, using basic summary: %v\n", err)
		return BasicSummarize(text, opts.MaxLength)
	}
	return completion.Content
}

// SummarizeNotes summarizes every note concurrently, keeping input order.
func (s *SummarizationUsecase) SummarizeNotes(ctx context.Context, notes []string) []string {
	opts := s.DefaultOptions()
	mapper := iter.Mapper[string, string]{MaxGoroutines: maxSummaryGoroutines}
	return mapper.Map(notes, func(note *string) string {
		return s.Summarize(ctx, *note, opts)
	})
}

func BuildSummarizationPrompt(text string, opts SummaryOptions) string {
	format := opts.Format
	if format == "" {
		format = SummaryFormatParagraph
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Please provide a concise summary of the following text in %s format", format)
	if opts.PreserveKeyPoints {
		b.WriteString(", preserving the key points and main ideas")
	}
	if opts.MaxLength > 0 {
		fmt.Fprintf(&b, ", approximately %d characters in length", opts.MaxLength)
	}
	b.WriteString(":\n\n")
	b.WriteString(text)
	return b.String()
}

// BasicSummarize keeps whole leading sentences while they fit in maxLength.
// Text without sentence punctuation is returned unchanged; a first sentence
// longer than maxLength is cut at maxLength characters.
func BasicSummarize(text string, maxLength int) string {
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return text
	}
	var b strings.Builder
	length := 0
	for _, sentence := range sentences {
		n := utf8.RuneCountInString(sentence)
		if length+n > maxLength {
			break
		}
		b.WriteString(sentence)
		length += n
	}
	summary := strings.TrimSpace(b.String())
	if summary == "" {
		runes := []rune(strings.TrimSpace(text))
		if len(runes) > maxLength {
			runes = runes[:maxLength]
		}
		summary = string(runes)
	}
	return summary
}
