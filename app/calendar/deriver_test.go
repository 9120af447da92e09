package calendar

import (
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestDerive_NoRecords(t *testing.T) {
	articles := []ArticleInput{{ID: 1, Title: "A"}}

	entries := Derive(articles, nil, nil)

	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	entry := entries[0]
	for _, format := range Formats {
		if entry.Statuses[format] != StatusUntouched {
			t.Errorf("Expected %s untouched, got %s", format, entry.Statuses[format])
		}
		if entry.DraftCounts[format] != 0 {
			t.Errorf("Expected %s draft count 0, got %d", format, entry.DraftCounts[format])
		}
	}
}

func TestDerive_DraftImpliesInProgress(t *testing.T) {
	articles := []ArticleInput{{ID: 1, Title: "A"}}
	drafts := []DraftRecord{{ArticleID: 1, Format: FormatBlogPost}}

	entries := Derive(articles, nil, drafts)

	entry := entries[0]
	if entry.Statuses[FormatBlogPost] != StatusInProgress {
		t.Errorf("Expected blog_post in_progress, got %s", entry.Statuses[FormatBlogPost])
	}
	if entry.DraftCounts[FormatBlogPost] != 1 {
		t.Errorf("Expected blog_post draft count 1, got %d", entry.DraftCounts[FormatBlogPost])
	}
	if entry.Statuses[FormatVideoScript] != StatusUntouched {
		t.Errorf("Expected video_script untouched, got %s", entry.Statuses[FormatVideoScript])
	}
}

func TestDerive_LatestStatusWins(t *testing.T) {
	t1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	articles := []ArticleInput{{ID: 2, Title: "B"}}
	statuses := []StatusRecord{
		{ArticleID: 2, Format: FormatLinkedInPost, Status: StatusDone, UpdatedAt: timePtr(t1)},
		{ArticleID: 2, Format: FormatLinkedInPost, Status: StatusUntouched, UpdatedAt: timePtr(t2)},
	}

	entries := Derive(articles, statuses, nil)

	// The later update wins even though it reverts to untouched
	if entries[0].Statuses[FormatLinkedInPost] != StatusUntouched {
		t.Errorf("Expected later untouched to win, got %s", entries[0].Statuses[FormatLinkedInPost])
	}
}

func TestDerive_LatestWinsRegardlessOfInputOrder(t *testing.T) {
	t1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	articles := []ArticleInput{{ID: 2}}
	statuses := []StatusRecord{
		{ArticleID: 2, Format: FormatLinkedInPost, Status: StatusUntouched, UpdatedAt: timePtr(t2)},
		{ArticleID: 2, Format: FormatLinkedInPost, Status: StatusDone, UpdatedAt: timePtr(t1)},
	}

	entries := Derive(articles, statuses, nil)

	if entries[0].Statuses[FormatLinkedInPost] != StatusUntouched {
		t.Errorf("Expected greatest timestamp to win, got %s", entries[0].Statuses[FormatLinkedInPost])
	}
}

func TestDerive_EqualTimestampsKeepEarlierRecord(t *testing.T) {
	shared := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	articles := []ArticleInput{{ID: 5}}
	statuses := []StatusRecord{
		{ArticleID: 5, Format: FormatVideoScript, Status: StatusDone, UpdatedAt: timePtr(shared)},
		{ArticleID: 5, Format: FormatVideoScript, Status: StatusInProgress, UpdatedAt: timePtr(shared)},
	}

	entries := Derive(articles, statuses, nil)

	if entries[0].Statuses[FormatVideoScript] != StatusDone {
		t.Errorf("Expected earlier input record to retain priority on ties, got %s",
			entries[0].Statuses[FormatVideoScript])
	}
}

func TestDerive_MissingUpdatedAtIsOldest(t *testing.T) {
	t1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	articles := []ArticleInput{{ID: 3}}
	statuses := []StatusRecord{
		{ArticleID: 3, Format: FormatBlogPost, Status: StatusDone, UpdatedAt: nil},
		{ArticleID: 3, Format: FormatBlogPost, Status: StatusInProgress, UpdatedAt: timePtr(t1)},
	}

	entries := Derive(articles, statuses, nil)

	if entries[0].Statuses[FormatBlogPost] != StatusInProgress {
		t.Errorf("Expected record without timestamp to lose, got %s", entries[0].Statuses[FormatBlogPost])
	}
}

func TestDerive_LegacyBlogOutlineDraft(t *testing.T) {
	articles := []ArticleInput{{ID: 3, Title: "C"}}
	drafts := []DraftRecord{{ArticleID: 3, Format: "blog_outline"}}

	entries := Derive(articles, nil, drafts)

	entry := entries[0]
	if entry.Statuses[FormatBlogPost] != StatusInProgress {
		t.Errorf("Expected legacy draft to map to blog_post, got %s", entry.Statuses[FormatBlogPost])
	}
	if entry.DraftCounts[FormatBlogPost] != 1 {
		t.Errorf("Expected blog_post draft count 1, got %d", entry.DraftCounts[FormatBlogPost])
	}
	if _, ok := entry.Statuses["blog_outline"]; ok {
		t.Error("Expected no blog_outline key in output")
	}
}

func TestDerive_LegacyBlogOutlineStatus(t *testing.T) {
	t1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	articles := []ArticleInput{{ID: 4}}
	statuses := []StatusRecord{
		{ArticleID: 4, Format: "blog_outline", Status: StatusDone, UpdatedAt: timePtr(t1)},
	}

	entries := Derive(articles, statuses, nil)

	if entries[0].Statuses[FormatBlogPost] != StatusDone {
		t.Errorf("Expected legacy status under blog_post, got %s", entries[0].Statuses[FormatBlogPost])
	}
}

func TestDerive_UnknownFormatIsDropped(t *testing.T) {
	articles := []ArticleInput{{ID: 1}}
	statuses := []StatusRecord{{ArticleID: 1, Format: "tiktok_script", Status: StatusDone}}
	drafts := []DraftRecord{{ArticleID: 1, Format: "tiktok_script"}}

	entries := Derive(articles, statuses, drafts)

	entry := entries[0]
	if len(entry.Statuses) != len(Formats) || len(entry.DraftCounts) != len(Formats) {
		t.Errorf("Expected only fixed formats in output, got %v", entry.Statuses)
	}
	for _, format := range Formats {
		if entry.Statuses[format] != StatusUntouched {
			t.Errorf("Expected %s untouched, got %s", format, entry.Statuses[format])
		}
	}
}

func TestDerive_PreservesArticleOrder(t *testing.T) {
	articles := []ArticleInput{{ID: 9}, {ID: 3}, {ID: 7}}

	entries := Derive(articles, nil, nil)

	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	for i, want := range []int64{9, 3, 7} {
		if entries[i].ID != want {
			t.Errorf("Entry %d has ID %d, want %d", i, entries[i].ID, want)
		}
	}
}

func TestDerive_DraftCountReportedAlongsideExplicitStatus(t *testing.T) {
	t1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	articles := []ArticleInput{{ID: 6}}
	statuses := []StatusRecord{
		{ArticleID: 6, Format: FormatInstagramCaption, Status: StatusDone, UpdatedAt: timePtr(t1)},
	}
	drafts := []DraftRecord{
		{ArticleID: 6, Format: FormatInstagramCaption},
		{ArticleID: 6, Format: FormatInstagramCaption},
	}

	entries := Derive(articles, statuses, drafts)

	entry := entries[0]
	if entry.Statuses[FormatInstagramCaption] != StatusDone {
		t.Errorf("Expected explicit done, got %s", entry.Statuses[FormatInstagramCaption])
	}
	if entry.DraftCounts[FormatInstagramCaption] != 2 {
		t.Errorf("Expected draft count 2 regardless of status, got %d",
			entry.DraftCounts[FormatInstagramCaption])
	}
}

func TestNormalizeFormat(t *testing.T) {
	if NormalizeFormat("blog_outline") != FormatBlogPost {
		t.Error("Expected blog_outline to normalize to blog_post")
	}
	if NormalizeFormat(FormatVideoScript) != FormatVideoScript {
		t.Error("Expected known formats to pass through")
	}
}

func TestIsKnownFormat(t *testing.T) {
	for _, format := range Formats {
		if !IsKnownFormat(format) {
			t.Errorf("Expected %s to be known", format)
		}
	}
	if !IsKnownFormat("blog_outline") {
		t.Error("Expected legacy blog_outline to be accepted")
	}
	if IsKnownFormat("tiktok_script") {
		t.Error("Expected unknown format to be rejected")
	}
}
