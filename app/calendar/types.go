package calendar

import (
	"time"
)

// The fixed repurposing output formats. "blog_outline" is a retired value
// still present in old rows; it is folded into blog_post during aggregation.
const (
	FormatVideoScript      = "video_script"
	FormatLinkedInPost     = "linkedin_post"
	FormatInstagramCaption = "instagram_caption"
	FormatBlogPost         = "blog_post"

	legacyBlogOutline = "blog_outline"
)

// Formats lists the fixed set in output order.
var Formats = []string{
	FormatVideoScript,
	FormatLinkedInPost,
	FormatInstagramCaption,
	FormatBlogPost,
}

// Repurposing statuses.
const (
	StatusUntouched  = "untouched"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// IsKnownFormat reports whether a format belongs to the fixed set, after
// legacy normalization.
func IsKnownFormat(format string) bool {
	format = NormalizeFormat(format)
	for _, known := range Formats {
		if format == known {
			return true
		}
	}
	return false
}

// NormalizeFormat folds retired format values into their replacements.
func NormalizeFormat(format string) string {
	if format == legacyBlogOutline {
		return FormatBlogPost
	}
	return format
}

// ArticleInput is one article row as supplied by the caller.
type ArticleInput struct {
	ID         int64
	Title      string
	Source     string
	ImportedAt time.Time
}

// StatusRecord is one explicit repurposing status row.
type StatusRecord struct {
	ArticleID int64
	Format    string
	Status    string
	UpdatedAt *time.Time
}

// DraftRecord is one generated draft row.
type DraftRecord struct {
	ArticleID int64
	Format    string
}

// Entry is one derived calendar row: the article plus a status and a draft
// count for every format in the fixed set.
type Entry struct {
	ArticleInput
	Statuses    map[string]string
	DraftCounts map[string]int
}
