package shortspublisher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"shorts-stack/internal/models"
	"shorts-stack/shared/analytics"
	"shorts-stack/shared/storage"
)

// timestampLayout is used for publishedAt and pass timestamps.
const timestampLayout = time.RFC3339Nano

// scheduleLayouts are the accepted scheduledFor formats: ISO 8601 extended
// dates with an optional time ("T" or space separated, down to the hour) and an
// optional offset. Fractional seconds parse without a layout of their own.
var scheduleLayouts = buildScheduleLayouts()

func buildScheduleLayouts() []string {
	layouts := []string{time.RFC3339Nano}
	for _, sep := range []string{"T", " "} {
		for _, clock := range []string{"15:04:05", "15:04", "15"} {
			for _, zone := range []string{"Z07:00", "Z0700", "Z07", ""} {
				layouts = append(layouts, "2006-01-02"+sep+clock+zone)
			}
		}
	}
	return append(layouts, "2006-01-02")
}

// Relocator moves a posted item's file; see storage.Relocator.
type Relocator interface {
	Relocate(item *models.VideoItem) (string, bool)
}

// Publisher uploads a posted item and returns its external video id.
type Publisher interface {
	Publish(ctx context.Context, video *models.VideoItem) (string, error)
}

// Notifier announces the items posted by one pass.
type Notifier interface {
	Notify(videos []models.VideoItem) error
}

// Processor transitions due scheduled items to posted.
type Processor struct {
	store     *storage.VideoStore
	relocator Relocator
	publisher Publisher
	notifier  Notifier
	now       func() time.Time
	log       *logrus.Entry
}

type ProcessorOption func(*Processor)

func WithPublisher(p Publisher) ProcessorOption {
	return func(proc *Processor) { proc.publisher = p }
}

func WithNotifier(n Notifier) ProcessorOption {
	return func(proc *Processor) { proc.notifier = n }
}

// WithClock replaces time.Now; tests pin the pass instant with it.
func WithClock(now func() time.Time) ProcessorOption {
	return func(proc *Processor) { proc.now = now }
}

func NewProcessor(store *storage.VideoStore, relocator Relocator, log *logrus.Entry, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:     store,
		relocator: relocator,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one pass over the store. All due comparisons use a single UTC
// instant, and the store is rewritten at most once.
func (p *Processor) Process(ctx context.Context) (*models.PassResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := p.log.WithField("pass_id", uuid.NewString())
	now := p.now().UTC()
	result := &models.PassResult{
		Processed:   []string{},
		Timestamp:   now.Format(timestampLayout),
		ProcessedAt: now,
	}

	var posted []models.VideoItem
	err := p.store.Update(func(doc *models.VideoStore) (bool, error) {
		for i := range doc.Videos {
			item := &doc.Videos[i]
			if !isDue(item, now, log) {
				continue
			}
			p.transition(item, now, log)
			result.Processed = append(result.Processed, item.ID)
			posted = append(posted, *item)
		}
		if len(posted) == 0 {
			return false, nil
		}
		mirrorHistory(doc)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("schedule pass failed: %w", err)
	}

	if len(posted) == 0 {
		log.Debug("No items due")
		return result, nil
	}

	log.Infof("Posted %d item(s): %s", len(posted), strings.Join(result.Processed, ", "))
	p.afterPost(ctx, log, posted)
	return result, nil
}

// MarkPosted transitions one item immediately. It reports false when no item
// has the id; the store is then left untouched. An item that is already posted
// is returned unchanged.
func (p *Processor) MarkPosted(ctx context.Context, id string) (models.VideoItem, bool, error) {
	log := p.log.WithFields(logrus.Fields{"pass_id": uuid.NewString(), "video_id": id})

	var (
		video        models.VideoItem
		found        bool
		transitioned bool
	)
	err := p.store.Update(func(doc *models.VideoStore) (bool, error) {
		item, ok := doc.FindVideo(id)
		if !ok {
			return false, nil
		}
		found = true
		if item.IsPosted() {
			video = *item
			return false, nil
		}

		p.transition(item, p.now().UTC(), log)
		video = *item
		mirrorHistory(doc)
		transitioned = true
		return true, nil
	})
	if err != nil {
		return models.VideoItem{}, false, fmt.Errorf("mark posted failed: %w", err)
	}

	if !found {
		log.Info("Mark posted: no such video")
		return models.VideoItem{}, false, nil
	}
	if !transitioned {
		log.Debug("Mark posted: already posted")
		return video, true, nil
	}

	log.Info("Marked posted manually")
	updated := p.afterPost(ctx, log, []models.VideoItem{video})
	return updated[0], true, nil
}

// transition applies the posted state to item in place.
func (p *Processor) transition(item *models.VideoItem, now time.Time, log *logrus.Entry) {
	if destination, moved := p.relocator.Relocate(item); moved {
		item.FilePath = &destination
	}

	stats := analytics.Synthesize(*item)
	publishedAt := now.Format(timestampLayout)

	item.Status = models.StatusPosted
	item.PublishedAt = &publishedAt
	item.Analytics = &stats

	log.WithField("video_id", item.ID).Debugf("Transitioned to posted (retention %.0f%%)", stats.RetentionRate)
}

// afterPost uploads and announces freshly posted items. Failures are logged
// and never undo the transition. It returns the items with any new YouTube ids.
func (p *Processor) afterPost(ctx context.Context, log *logrus.Entry, items []models.VideoItem) []models.VideoItem {
	if p.publisher != nil {
		uploaded := make(map[string]string)
		for i := range items {
			item := &items[i]
			if item.YouTubeVideoID != nil {
				continue
			}
			videoID, err := p.publisher.Publish(ctx, item)
			if err != nil {
				log.WithError(err).WithField("video_id", item.ID).Warn("Upload failed")
				continue
			}
			item.YouTubeVideoID = &videoID
			uploaded[item.ID] = videoID
		}
		if len(uploaded) > 0 {
			if err := p.recordUploads(uploaded); err != nil {
				log.WithError(err).Warn("Failed to store YouTube ids")
			}
		}
	}

	if p.notifier != nil {
		if err := p.notifier.Notify(items); err != nil {
			log.WithError(err).Warn("Failed to send posted digest")
		}
	}

	return items
}

// recordUploads stores YouTube ids on the working item and its history mirror.
func (p *Processor) recordUploads(uploaded map[string]string) error {
	return p.store.Update(func(doc *models.VideoStore) (bool, error) {
		changed := false
		for _, list := range [][]models.VideoItem{doc.Videos, doc.History} {
			for i := range list {
				videoID, ok := uploaded[list[i].ID]
				if !ok || list[i].YouTubeVideoID != nil {
					continue
				}
				list[i].YouTubeVideoID = &videoID
				changed = true
			}
		}
		return changed, nil
	})
}

// isDue reports whether item is scheduled at or before now. Items with an
// absent or unreadable scheduledFor are never due.
func isDue(item *models.VideoItem, now time.Time, log *logrus.Entry) bool {
	if item.Status != models.StatusScheduled || item.ScheduledFor == nil {
		return false
	}
	due, ok := parseScheduledFor(*item.ScheduledFor)
	if !ok {
		log.WithField("video_id", item.ID).Debugf("Skipping unreadable scheduledFor %q", *item.ScheduledFor)
		return false
	}
	return !due.After(now)
}

// parseScheduledFor reads value as a UTC instant; a value without an offset is
// taken to be UTC.
func parseScheduledFor(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// mirrorHistory appends every posted item not yet in history, in videos order.
func mirrorHistory(doc *models.VideoStore) {
	seen := make(map[string]struct{}, len(doc.History))
	for _, h := range doc.History {
		seen[h.ID] = struct{}{}
	}
	for _, v := range doc.Videos {
		if !v.IsPosted() {
			continue
		}
		if _, ok := seen[v.ID]; ok {
			continue
		}
		doc.History = append(doc.History, v)
		seen[v.ID] = struct{}{}
	}
}
