package calendar

import (
	"sort"
	"time"
)

type articleFormat struct {
	articleID int64
	format    string
}

// Derive computes one calendar entry per input article: per format, the
// latest explicit status (or a default inferred from draft presence) and the
// draft count. Pure: no I/O, deterministic given its inputs. Output preserves
// the input article ordering. Records with formats outside the fixed set are
// dropped from aggregation.
func Derive(articles []ArticleInput, statusRecords []StatusRecord, draftRecords []DraftRecord) []Entry {
	draftCounts := countDrafts(draftRecords)
	latestStatuses := latestByKey(statusRecords)

	entries := make([]Entry, 0, len(articles))
	for _, article := range articles {
		entry := Entry{
			ArticleInput: article,
			Statuses:     make(map[string]string, len(Formats)),
			DraftCounts:  make(map[string]int, len(Formats)),
		}

		for _, format := range Formats {
			key := articleFormat{article.ID, format}
			count := draftCounts[key]
			entry.DraftCounts[format] = count

			if status, ok := latestStatuses[key]; ok {
				entry.Statuses[format] = status
			} else if count > 0 {
				entry.Statuses[format] = StatusInProgress
			} else {
				entry.Statuses[format] = StatusUntouched
			}
		}

		entries = append(entries, entry)
	}

	return entries
}

func countDrafts(drafts []DraftRecord) map[articleFormat]int {
	counts := make(map[articleFormat]int, len(drafts))
	for _, draft := range drafts {
		key := articleFormat{draft.ArticleID, NormalizeFormat(draft.Format)}
		counts[key]++
	}
	return counts
}

// latestByKey keeps, per (article, format), the status with the greatest
// UpdatedAt. The sort is stable and descending, and only the first record per
// key is stored, so equal timestamps resolve to the earlier input record.
func latestByKey(records []StatusRecord) map[articleFormat]string {
	sorted := make([]StatusRecord, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		return statusTime(sorted[i]).After(statusTime(sorted[j]))
	})

	latest := make(map[articleFormat]string, len(sorted))
	for _, record := range sorted {
		key := articleFormat{record.ArticleID, NormalizeFormat(record.Format)}
		if _, ok := latest[key]; !ok {
			latest[key] = record.Status
		}
	}

	return latest
}

// statusTime treats a missing UpdatedAt as the zero time, i.e. oldest.
func statusTime(record StatusRecord) time.Time {
	if record.UpdatedAt == nil {
		return time.Time{}
	}
	return *record.UpdatedAt
}
