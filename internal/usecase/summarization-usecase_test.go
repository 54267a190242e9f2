package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/iamvkosarev/notechat/config"
	"github.com/iamvkosarev/notechat/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSummarization(ai *fakeCompleter) *SummarizationUsecase {
	settings := config.DefaultSettings()
	settings.SummaryMaxLength = 50
	return NewSummarizationUsecase(SummarizationUsecaseDeps{
		AI:       ai,
		Settings: staticSettings(settings),
	})
}

func TestSummarize_BlankAndShortText(t *testing.T) {
	ai := &fakeCompleter{}
	s := newTestSummarization(ai)

	assert.Equal(t, "", s.Summarize(context.Background(), "   ", s.DefaultOptions()))
	assert.Equal(t, "short note", s.Summarize(context.Background(), "short note", s.DefaultOptions()))
	assert.Empty(t, ai.calls())
}

func TestSummarize_UsesAI(t *testing.T) {
	ai := &fakeCompleter{respond: func(req CompletionRequest) (Completion, error) {
		return Completion{Content: "summary"}, nil
	}}
	s := newTestSummarization(ai)
	text := strings.Repeat("A long sentence about databases. ", 5)

	got := s.Summarize(context.Background(), text, s.DefaultOptions())
	assert.Equal(t, "summary", got)

	calls := ai.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "", calls[0].Context)
	assert.True(t, strings.HasPrefix(calls[0].Query, "Please provide a concise summary of the following text in paragraph format"))
	assert.Contains(t, calls[0].Query, "approximately 50 characters in length")
	assert.True(t, strings.HasSuffix(calls[0].Query, text))
}

func TestSummarize_FallsBackOnAIError(t *testing.T) {
	ai := &fakeCompleter{respond: func(req CompletionRequest) (Completion, error) {
		return Completion{}, model.ErrRateLimited
	}}
	s := newTestSummarization(ai)
	text := "First sentence here. Second sentence here. Third sentence is here too."

	got := s.Summarize(context.Background(), text, SummaryOptions{MaxLength: 45})
	assert.Equal(t, "First sentence here. Second sentence here.", got)
}

func TestSummarizeNotes_KeepsOrder(t *testing.T) {
	ai := &fakeCompleter{respond: func(req CompletionRequest) (Completion, error) {
		return Completion{Content: "sum:" + req.Query[len(req.Query)-3:]}, nil
	}}
	s := newTestSummarization(ai)

	notes := make([]string, 0, 10)
	want := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		note := strings.Repeat("x", 60) + string(rune('a'+i)) + "zz"
		notes = append(notes, note)
		want = append(want, "sum:"+string(rune('a'+i))+"zz")
	}
	notes = append(notes, "tiny")
	want = append(want, "tiny")

	assert.Equal(t, want, s.SummarizeNotes(context.Background(), notes))
}

func TestBasicSummarize(t *testing.T) {
	assert.Equal(t, "no punctuation at all", BasicSummarize("no punctuation at all", 5))
	assert.Equal(t, "One. Two!", BasicSummarize("One. Two! Three?", 10))
	assert.Equal(t, "A very", BasicSummarize("A very long first sentence.", 6))
}

func TestBuildSummarizationPrompt(t *testing.T) {
	got := BuildSummarizationPrompt("text", SummaryOptions{Format: SummaryFormatBullet})
	assert.Equal(t, "Please provide a concise summary of the following text in bullet format:\n\ntext", got)
}
