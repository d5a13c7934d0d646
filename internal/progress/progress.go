// Package progress implements the course progress aggregation engine: given a
// course curriculum and the set of content items a learner has completed, it
// derives weighted completion percentages at chapter, subject and course level.
//
// The computation is pure. All persistence and serialization of the inputs and
// outputs belongs to the callers; JSON field names on these types are part of
// the API contract consumed by the web client and must not change.
package progress

import (
	"math"
	"time"
)

// ContentType identifies the kind of a curriculum content item.
type ContentType string

const (
	ContentTypeVideo      ContentType = "video"
	ContentTypeLive       ContentType = "live"
	ContentTypeNote       ContentType = "note"
	ContentTypeTest       ContentType = "test"
	ContentTypeAssignment ContentType = "assignment"
)

// Weighted maps a content type onto the type whose weight it counts against.
// Live sessions count as videos.
func (t ContentType) Weighted() ContentType {
	if t == ContentTypeLive {
		return ContentTypeVideo
	}
	return t
}

// Status classifies a chapter's completion state.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ContentItem is the smallest unit of curriculum that can be marked complete.
type ContentItem struct {
	ID       string      `json:"id"`
	Type     ContentType `json:"type"`
	Title    string      `json:"title"`
	URL      string      `json:"url,omitempty"`
	Duration string      `json:"duration,omitempty"`
	IsFree   bool        `json:"isFree,omitempty"`
}

// Chapter groups content items under a subject module.
type Chapter struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Contents    []ContentItem `json:"contents"`
}

// SubjectModule is one subject's slice of the curriculum.
type SubjectModule struct {
	Subject  string    `json:"subject"`
	Chapters []Chapter `json:"chapters"`
}

// Curriculum is the ordered subject -> chapter -> content tree of a course.
type Curriculum []SubjectModule

// WeightConfig holds the relative contribution of each content type to a
// chapter's completion percentage. Weights need not sum to 100.
type WeightConfig struct {
	Video      float64 `json:"video"`
	Note       float64 `json:"note"`
	Test       float64 `json:"test"`
	Assignment float64 `json:"assignment"`
}

// DefaultWeights returns the platform default weighting.
func DefaultWeights() WeightConfig {
	return WeightConfig{Video: 30, Note: 20, Test: 30, Assignment: 20}
}

// IsZero reports whether no weight has been configured.
func (w WeightConfig) IsZero() bool {
	return w.Video == 0 && w.Note == 0 && w.Test == 0 && w.Assignment == 0
}

func (w WeightConfig) weightFor(t ContentType) (float64, bool) {
	switch t {
	case ContentTypeVideo:
		return w.Video, true
	case ContentTypeNote:
		return w.Note, true
	case ContentTypeTest:
		return w.Test, true
	case ContentTypeAssignment:
		return w.Assignment, true
	default:
		return 0, false
	}
}

// Completion records that a learner finished one content item.
type Completion struct {
	ContentID   string      `json:"contentId"`
	Type        ContentType `json:"type"`
	CompletedAt time.Time   `json:"completedAt"`
	Score       *float64    `json:"score,omitempty"`
}

// ChapterProgress is the derived completion state of a single chapter.
type ChapterProgress struct {
	Subject      string `json:"subject"`
	ChapterTitle string `json:"chapterTitle"`
	Percentage   int    `json:"percentage"`
	Status       Status `json:"status"`
}

// SubjectProgress is the derived completion state of a subject module.
type SubjectProgress struct {
	Subject    string `json:"subject"`
	Percentage int    `json:"percentage"`
}

// Summary is the full recomputed aggregation across all three levels.
type Summary struct {
	ChapterProgress []ChapterProgress `json:"chapterProgress"`
	SubjectProgress []SubjectProgress `json:"subjectProgress"`
	Overall         int               `json:"overallProgress"`
}

// MarkCompleted records a completion for contentID, keeping the set unique by
// content id. Marking an already-completed item is a no-op unless a score is
// supplied, in which case the existing entry's score and timestamp are updated
// (a retake). The returned flag reports whether anything changed.
func MarkCompleted(completions []Completion, contentID string, contentType ContentType, score *float64, now time.Time) ([]Completion, bool) {
	for i := range completions {
		if completions[i].ContentID != contentID {
			continue
		}
		if score == nil {
			return completions, false
		}
		completions[i].Score = score
		completions[i].CompletedAt = now
		return completions, true
	}

	return append(completions, Completion{
		ContentID:   contentID,
		Type:        contentType,
		CompletedAt: now,
		Score:       score,
	}), true
}

// Recompute derives the full progress summary from scratch. It never mutates
// its inputs and is safe to call with an empty curriculum or completion set.
//
// Two conventions carried over from the production behavior are worth calling
// out: a chapter with no content items at all reports 100% / completed
// ("nothing to do, trivially done"), yet such chapters are excluded from their
// subject's average so they cannot inflate it. Content whose type carries no
// weight contributes nothing at any level.
func Recompute(curriculum Curriculum, weights WeightConfig, completions []Completion) Summary {
	completed := make(map[string]struct{}, len(completions))
	for _, c := range completions {
		completed[c.ContentID] = struct{}{}
	}

	summary := Summary{
		ChapterProgress: make([]ChapterProgress, 0),
		SubjectProgress: make([]SubjectProgress, 0, len(curriculum)),
	}

	var courseTotal float64
	var countedSubjects int

	for _, module := range curriculum {
		var subjectTotal float64
		var countedChapters int

		for _, chapter := range module.Chapters {
			percentage, hasItems := chapterPercentage(chapter, weights, completed)

			summary.ChapterProgress = append(summary.ChapterProgress, ChapterProgress{
				Subject:      module.Subject,
				ChapterTitle: chapter.Title,
				Percentage:   round(percentage),
				Status:       statusFor(percentage),
			})

			if hasItems {
				subjectTotal += percentage
				countedChapters++
			}
		}

		var subjectPercentage float64
		if countedChapters > 0 {
			subjectPercentage = subjectTotal / float64(countedChapters)
		}

		summary.SubjectProgress = append(summary.SubjectProgress, SubjectProgress{
			Subject:    module.Subject,
			Percentage: round(subjectPercentage),
		})

		if countedChapters > 0 {
			courseTotal += subjectPercentage
			countedSubjects++
		}
	}

	if countedSubjects > 0 {
		summary.Overall = round(courseTotal / float64(countedSubjects))
	}

	return summary
}

// chapterPercentage computes the weighted completion of one chapter and
// whether the chapter has any weighted content at all. Only types actually
// present in the chapter contribute to either side of the ratio, so a missing
// type neither drags the percentage down nor inflates it.
func chapterPercentage(chapter Chapter, weights WeightConfig, completed map[string]struct{}) (float64, bool) {
	counts := make(map[ContentType]int, 4)
	done := make(map[ContentType]int, 4)
	hasItems := len(chapter.Contents) > 0

	for _, content := range chapter.Contents {
		t := content.Type.Weighted()
		if _, known := weights.weightFor(t); !known {
			// Unrecognised types are inert rather than an error so that
			// records referencing retired content kinds keep aggregating.
			continue
		}
		counts[t]++
		if _, ok := completed[content.ID]; ok {
			done[t]++
		}
	}

	var current, max float64
	for t, total := range counts {
		weight, _ := weights.weightFor(t)
		max += weight
		current += float64(done[t]) / float64(total) * weight
	}

	if max > 0 {
		return current / max * 100, hasItems
	}
	if hasItems {
		// Items exist but none of their types carry weight.
		return 0, true
	}
	// Empty chapter: trivially done.
	return 100, false
}

func statusFor(percentage float64) Status {
	switch {
	case percentage == 100:
		return StatusCompleted
	case percentage > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

func round(value float64) int {
	return int(math.Round(value))
}
