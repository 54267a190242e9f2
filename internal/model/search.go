package model

import "time"

type SearchResultType string

const (
	SearchResultMessage = SearchResultType("message")
	SearchResultFile    = SearchResultType("file")
)

type SearchSource struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Path      string    `json:"path,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type SearchResult struct {
	Type    SearchResultType `json:"type"`
	Content string           `json:"content"`
	Score   float64          `json:"score"`
	Source  SearchSource     `json:"source"`
}
