package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/iamvkosarev/notechat/config"
	"github.com/iamvkosarev/notechat/internal/model"
)

const (
	DefaultSearchMaxResults = 10
	excerptContextLength    = 100
	excerptEllipsis         = "..."
)

type SearchOptions struct {
	CaseSensitive        bool
	IncludeFiles         bool
	IncludeConversations bool
	MaxResults           int
}

func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		IncludeFiles:         true,
		IncludeConversations: true,
		MaxResults:           DefaultSearchMaxResults,
	}
}

type NoteSource interface {
	Notes(ctx context.Context) ([]model.Note, error)
}

type ConversationLister interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
}

type SettingsProvider interface {
	Settings() config.Settings
}

type SearchUsecaseDeps struct {
	Notes         NoteSource
	Conversations ConversationLister
	Settings      SettingsProvider
}

type SearchUsecase struct {
	SearchUsecaseDeps
}

func NewSearchUsecase(deps SearchUsecaseDeps) *SearchUsecase {
	return &SearchUsecase{
		SearchUsecaseDeps: deps,
	}
}

// Search matches query literally against conversation messages and vault
// notes. Conversations are skipped when chat history search is disabled.
func (s *SearchUsecase) Search(ctx context.Context, query string, opts SearchOptions) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, model.ErrEmptyQuery
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultSearchMaxResults
	}
	re := queryRegexp(query, opts.CaseSensitive)

	results := make([]model.SearchResult, 0)
	if opts.IncludeConversations && s.Settings.Settings().SearchChatHistory {
		conversations, err := s.Conversations.ListConversations(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list conversations: %w", err)
		}
		for _, conv := range conversations {
			for _, msg := range conv.Messages {
				matches := re.FindAllStringIndex(msg.Content, -1)
				if len(matches) == 0 {
					continue
				}
				results = append(results, model.SearchResult{
					Type:    model.SearchResultMessage,
					Content: excerpt(msg.Content, matches[0][0]),
					Score:   matchScore(len(matches), msg.Content),
					Source: model.SearchSource{
						ID:        conv.ID,
						Title:     conv.Title,
						Timestamp: msg.Timestamp,
					},
				})
			}
		}
	}
	if opts.IncludeFiles {
		notes, err := s.Notes.Notes(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read notes: %w", err)
		}
		for _, note := range notes {
			matches := re.FindAllStringIndex(note.Content, -1)
			if len(matches) == 0 {
				continue
			}
			results = append(results, model.SearchResult{
				Type:    model.SearchResultFile,
				Content: excerpt(note.Content, matches[0][0]),
				Score:   matchScore(len(matches), note.Content),
				Source: model.SearchSource{
					Path:  note.Path,
					Title: note.Title,
				},
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return results, nil
}

// matchScore favours more matches and, among equal counts, denser content.
func matchScore(matches int, content string) float64 {
	length := utf8.RuneCountInString(content)
	if length == 0 {
		return 0
	}
	return float64(matches) * (1 + float64(matches)/float64(length))
}

// excerpt cuts up to 100 characters on each side of the match at byte offset
// matchStart, marking cut ends with an ellipsis.
func excerpt(content string, matchStart int) string {
	runes := []rune(content)
	at := utf8.RuneCountInString(content[:matchStart])
	start := max(0, at-excerptContextLength)
	end := min(len(runes), at+excerptContextLength)

	out := string(runes[start:end])
	if start > 0 {
		out = excerptEllipsis + out
	}
	if end < len(runes) {
		out += excerptEllipsis
	}
	return out
}
