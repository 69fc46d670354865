package models

import "time"

// VideoStatus is the lifecycle state of a short. The set is open; unknown
// values are stored and returned untouched.
type VideoStatus string

const (
	StatusDraft     VideoStatus = "draft"
	StatusScheduled VideoStatus = "scheduled"
	StatusPosted    VideoStatus = "posted"
)

// VideoItem is one short-form video tracked from idea to publication.
type VideoItem struct {
	ID              string          `json:"id" validate:"required"`
	Topic           string          `json:"topic"`
	Description     string          `json:"description"`
	Caption         string          `json:"caption"`
	ThumbnailPrompt string          `json:"thumbnailPrompt"`
	HookScore       int             `json:"hookScore" validate:"gte=0,lte=100"`
	RetentionNotes  []string        `json:"retentionNotes"`
	Status          VideoStatus     `json:"status" validate:"required"`
	ScheduledFor    *string         `json:"scheduledFor,omitempty"`
	CreatedAt       string          `json:"createdAt" validate:"required"`
	PublishedAt     *string         `json:"publishedAt,omitempty"`
	YouTubeVideoID  *string         `json:"youtubeVideoId,omitempty"`
	FilePath        *string         `json:"filePath,omitempty"`
	Analytics       *VideoAnalytics `json:"analytics,omitempty"`
}

// IsPosted reports whether the item reached the terminal posted state.
func (v *VideoItem) IsPosted() bool {
	return v.Status == StatusPosted
}

type DropOffMoment struct {
	Timestamp   int    `json:"timestamp"`
	Description string `json:"description"`
}

// VideoAnalytics is a snapshot attached once when an item is posted.
type VideoAnalytics struct {
	AverageViewDuration float64         `json:"averageViewDuration"`
	RetentionRate       float64         `json:"retentionRate"`
	ClickThroughRate    float64         `json:"clickThroughRate"`
	CommentsSummary     string          `json:"commentsSummary"`
	DropOffMoments      []DropOffMoment `json:"dropOffMoments"`
	ImprovementIdeas    []string        `json:"improvementIdeas"`
}

// VideoStore is the persisted document: the working set plus an append-only
// mirror of every item that has been posted.
type VideoStore struct {
	Videos  []VideoItem `json:"videos" validate:"unique=ID,dive"`
	History []VideoItem `json:"history" validate:"dive"`
}

// FindVideo returns a pointer into Videos for the given id.
func (s *VideoStore) FindVideo(id string) (*VideoItem, bool) {
	for i := range s.Videos {
		if s.Videos[i].ID == id {
			return &s.Videos[i], true
		}
	}
	return nil, false
}

// CountByStatus returns how many working-set items are in the given status.
func (s *VideoStore) CountByStatus(status VideoStatus) int {
	n := 0
	for _, v := range s.Videos {
		if v.Status == status {
			n++
		}
	}
	return n
}

// PassResult describes one run of the schedule processor.
type PassResult struct {
	Processed   []string  `json:"processed"`
	Timestamp   string    `json:"timestamp"`
	ProcessedAt time.Time `json:"-"`
}
