package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mlipovsky/lettermill/app/database"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Lenny's Newsletter</title>
	<link>https://example.com</link>
	<item>
		<guid>https://example.com/posts/1</guid>
		<title>How to prioritize</title>
		<link>https://example.com/posts/1</link>
		<description><![CDATA[<p>Prioritization is hard.</p>]]></description>
		<pubDate>Mon, 03 Aug 2026 10:00:00 GMT</pubDate>
	</item>
	<item>
		<guid>https://example.com/posts/2</guid>
		<title>Hiring your first PM</title>
		<link>https://example.com/posts/2</link>
		<description><![CDATA[<p>When to hire.</p>]]></description>
	</item>
</channel>
</rss>`

type fakeSourceRepo struct {
	database.SourceRepository

	polledAt map[int64]time.Time
	ingested map[int64]int
}

func (r *fakeSourceRepo) UpdatePolledAt(sourceID int64, at time.Time) error {
	if r.polledAt == nil {
		r.polledAt = map[int64]time.Time{}
	}
	r.polledAt[sourceID] = at
	return nil
}

func (r *fakeSourceRepo) RecordIngested(sourceID int64, at time.Time) error {
	if r.ingested == nil {
		r.ingested = map[int64]int{}
	}
	r.ingested[sourceID]++
	return nil
}

type fakeQueueRepo struct {
	database.QueueRepository

	existing map[string]bool
	inserted []*database.PendingMessage
}

func (r *fakeQueueRepo) FilterExistingExternalIDs(ids []string) (map[string]bool, error) {
	found := map[string]bool{}
	for _, id := range ids {
		if r.existing[id] {
			found[id] = true
		}
	}
	return found, nil
}

func (r *fakeQueueRepo) InsertPending(msg *database.PendingMessage) error {
	r.inserted = append(r.inserted, msg)
	if r.existing == nil {
		r.existing = map[string]bool{}
	}
	if msg.ExternalMessageID != nil {
		r.existing[*msg.ExternalMessageID] = true
	}
	return nil
}

func testSource(feedURL string) database.MonitoredSource {
	return database.MonitoredSource{
		ID:           1,
		DisplayName:  "Lenny's Newsletter",
		EmailAddress: "lenny@substack.com",
		FeedURL:      feedURL,
		IsActive:     true,
	}
}

func TestPollSource_QueuesNewItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "lettermill/test" {
			t.Errorf("Unexpected user agent: %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	sources := &fakeSourceRepo{}
	queue := &fakeQueueRepo{}
	poller := NewPoller(server.Client(), sources, queue, "lettermill/test")

	saved, err := poller.PollSource(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("PollSource failed: %v", err)
	}

	if saved != 2 {
		t.Errorf("Expected 2 new entries, got %d", saved)
	}
	if len(queue.inserted) != 2 {
		t.Fatalf("Expected 2 inserts, got %d", len(queue.inserted))
	}

	first := queue.inserted[0]
	if first.Subject != "How to prioritize" {
		t.Errorf("Unexpected subject: %q", first.Subject)
	}
	if first.FromAddress != "lenny@substack.com" {
		t.Errorf("Expected source email as sender, got %q", first.FromAddress)
	}
	if first.ExternalMessageID == nil || *first.ExternalMessageID != "https://example.com/posts/1" {
		t.Errorf("Unexpected external ID: %v", first.ExternalMessageID)
	}
	if first.BodyText != "Prioritization is hard." {
		t.Errorf("Expected stripped body text, got %q", first.BodyText)
	}
	if first.ReceivedAt.Year() != 2026 {
		t.Errorf("Expected published date used, got %v", first.ReceivedAt)
	}

	if sources.ingested[1] != 2 {
		t.Errorf("Expected 2 ingested recorded, got %d", sources.ingested[1])
	}
	if _, ok := sources.polledAt[1]; !ok {
		t.Error("Expected poll time recorded")
	}
}

func TestPollSource_SkipsExistingItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	queue := &fakeQueueRepo{existing: map[string]bool{"https://example.com/posts/1": true}}
	poller := NewPoller(server.Client(), &fakeSourceRepo{}, queue, "ua")

	saved, err := poller.PollSource(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("PollSource failed: %v", err)
	}

	if saved != 1 {
		t.Errorf("Expected 1 new entry, got %d", saved)
	}
	if len(queue.inserted) != 1 || *queue.inserted[0].ExternalMessageID != "https://example.com/posts/2" {
		t.Errorf("Expected only the unseen item queued, got %v", queue.inserted)
	}
}

func TestPollSource_NoFeedURL(t *testing.T) {
	poller := NewPoller(http.DefaultClient, &fakeSourceRepo{}, &fakeQueueRepo{}, "ua")

	source := testSource("")
	if _, err := poller.PollSource(context.Background(), source); err == nil {
		t.Error("Expected error for source without feed URL")
	}
}

func TestPollSource_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	poller := NewPoller(server.Client(), &fakeSourceRepo{}, &fakeQueueRepo{}, "ua")

	if _, err := poller.PollSource(context.Background(), testSource(server.URL)); err == nil {
		t.Error("Expected error on non-200 response")
	}
}

func TestParser_Run(t *testing.T) {
	parser := NewParser()

	title, items, err := parser.Run([]byte(sampleFeed))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if title != "Lenny's Newsletter" {
		t.Errorf("Unexpected feed title: %q", title)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].GUID != "https://example.com/posts/1" {
		t.Errorf("Unexpected GUID: %q", items[0].GUID)
	}
	if items[0].PublishedAt.IsZero() {
		t.Error("Expected published date parsed")
	}
	if !items[1].PublishedAt.IsZero() {
		t.Error("Expected zero published date for item without pubDate")
	}
}

func TestParser_InvalidData(t *testing.T) {
	parser := NewParser()

	if _, _, err := parser.Run([]byte("not a feed")); err == nil {
		t.Error("Expected error for invalid feed data")
	}
}
