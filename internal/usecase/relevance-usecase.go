package usecase

import (
	"regexp"
	"sort"
	"strings"

	"github.com/iamvkosarev/notechat/internal/model"
)

const (
	titleMatchWeight      = 0.5
	tagMatchWeight        = 0.2
	contentMatchWeight    = 0.3
	occurrenceWeight      = 0.1
	activeNoteScore       = 1.0
	NoRelevantNotesNotice = "No relevant notes found."
)

type ScoredNote struct {
	Note  model.Note
	Score float64
}

type RelevanceUsecase struct{}

func NewRelevanceUsecase() *RelevanceUsecase {
	return &RelevanceUsecase{}
}

// ScoreNote weighs title, tag and content matches plus the number of
// case-insensitive occurrences of query in the content.
func ScoreNote(note model.Note, query string) float64 {
	if query == "" {
		return 0
	}
	var score float64
	if strings.Contains(note.Title, query) {
		score += titleMatchWeight
	}
	for _, tag := range note.Tags {
		if strings.Contains(tag, query) {
			score += tagMatchWeight
			break
		}
	}
	if strings.Contains(note.Content, query) {
		score += contentMatchWeight
	}
	score += float64(countOccurrences(note.Content, query, false)) * occurrenceWeight
	return score
}

func countOccurrences(content, query string, caseSensitive bool) int {
	return len(queryRegexp(query, caseSensitive).FindAllStringIndex(content, -1))
}

func queryRegexp(query string, caseSensitive bool) *regexp.Regexp {
	pattern := regexp.QuoteMeta(query)
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	return regexp.MustCompile(pattern)
}

// Rank scores notes against query, drops zero scores and sorts the rest by
// descending score. A non-nil active note is always kept with score 1, and
// its copy among notes is not scored.
func (r *RelevanceUsecase) Rank(notes []model.Note, query string, active *model.Note) []ScoredNote {
	ranked := make([]ScoredNote, 0, len(notes)+1)
	if active != nil {
		ranked = append(ranked, ScoredNote{Note: *active, Score: activeNoteScore})
	}
	for _, note := range notes {
		if active != nil && note.Path == active.Path {
			continue
		}
		if score := ScoreNote(note, query); score > 0 {
			ranked = append(ranked, ScoredNote{Note: note, Score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// RelevantNotes returns the contents of the top limit notes. A limit of zero
// or less keeps all of them.
func (r *RelevanceUsecase) RelevantNotes(notes []model.Note, query string, active *model.Note, limit int) []string {
	ranked := r.Rank(notes, query, active)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	contents := make([]string, 0, len(ranked))
	for _, scored := range ranked {
		contents = append(contents, scored.Note.Content)
	}
	return contents
}

// BuildContext joins note contents with newlines. A blank result becomes the
// no-notes placeholder.
func BuildContext(notes []string) string {
	joined := strings.Join(notes, "\n")
	if strings.TrimSpace(joined) == "" {
		return NoRelevantNotesNotice
	}
	return joined
}
