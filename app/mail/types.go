package mail

import (
	"context"
)

// Message is one mail message as reported by the external search tool.
// Search returns preview data only; FetchBodies fills Body and BodyHTML.
type Message struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Subject  string `json:"subject"`
	From     string `json:"from"`
	Snippet  string `json:"snippet"`
	Body     string `json:"body"`
	BodyHTML string `json:"bodyHtml"`
	Date     string `json:"date"`
}

// Searcher is the mail-search capability consumed by the ingestion
// coordinator. Both calls are external, fallible, and bounded by the client's
// timeout and response-size cap.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Message, error)
	FetchBodies(ctx context.Context, threadIDs []string, includeFull bool) (map[string][]Message, error)
}
