package rss

import (
	"bytes"
	"cmp"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

// Item is one normalized feed entry.
type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt time.Time
}

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses raw feed data and returns the feed title plus normalized items.
func (p *Parser) Run(data []byte) (string, []Item, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		normalized := Item{
			GUID:        cmp.Or(item.GUID, item.Link),
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Content:     item.Content,
		}

		if item.PublishedParsed != nil {
			normalized.PublishedAt = *item.PublishedParsed
		}

		items = append(items, normalized)
	}

	return feed.Title, items, nil
}
