package shortspublisher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"shorts-stack/agents/shorts-publisher/youtube"
	"shorts-stack/internal/models"
	"shorts-stack/shared/ai"
	"shorts-stack/shared/config"
	"shorts-stack/shared/email"
	"shorts-stack/shared/logging"
	"shorts-stack/shared/scheduler"
	"shorts-stack/shared/storage"
)

// PublisherMetrics represents the outcome of one schedule pass
type PublisherMetrics struct {
	Processed []string `json:"processed"`
	Timestamp string   `json:"timestamp"`
}

// GetSummary implements the scheduler.Metrics interface
func (m PublisherMetrics) GetSummary() string {
	if len(m.Processed) == 0 {
		return "no scheduled videos due"
	}
	return fmt.Sprintf("posted %d video(s): %s", len(m.Processed), strings.Join(m.Processed, ", "))
}

// PublisherAgent implements the scheduler.Agent interface
type PublisherAgent struct {
	config    *config.Config
	log       *logrus.Entry
	store     *storage.VideoStore
	processor *Processor
	coach     *ai.Coach
}

func NewPublisherAgent(cfg *config.Config, log *logrus.Entry) *PublisherAgent {
	return &PublisherAgent{
		config: cfg,
		log:    log,
	}
}

func (a *PublisherAgent) Name() string {
	return "Shorts Publisher"
}

// Initialize prepares the store and the optional integrations. A corrupt
// store is fatal; a failing AI client only disables coaching.
func (a *PublisherAgent) Initialize() error {
	if a.processor != nil {
		return nil
	}
	a.log.Infof("Initializing %s...", a.Name())

	a.store = storage.NewVideoStore(a.config.Store.DataFile, a.config.Folders.ToPost, a.config.Folders.Posted)
	doc, err := a.store.Read()
	if err != nil {
		return fmt.Errorf("failed to open video store: %w", err)
	}
	a.log.Infof("Video store ready at %s (%d videos, %d in history)", a.store.Path(), len(doc.Videos), len(doc.History))

	relocator := storage.NewRelocator(a.config.Folders.Posted, logging.Component(a.log, "relocator"))

	var opts []ProcessorOption
	if a.config.YouTube.UploadEnabled {
		client, err := youtube.NewClient(&a.config.YouTube, logging.Component(a.log, "youtube"))
		if err != nil {
			return fmt.Errorf("failed to create YouTube client: %w", err)
		}
		opts = append(opts, WithPublisher(client))
		a.log.Info("YouTube uploads enabled")
	}

	if a.config.Email.Enabled() {
		opts = append(opts, WithNotifier(email.NewSender(&a.config.Email)))
		a.log.Info("Email digest enabled")
	}

	if a.config.AI.GeminiAPIKey != "" {
		coach, err := ai.NewCoach(&a.config.AI, logging.Component(a.log, "coach"))
		if err != nil {
			a.log.WithError(err).Warn("AI coach unavailable")
		} else {
			a.coach = coach
			a.log.Info("AI coach initialized")
		}
	}

	a.processor = NewProcessor(a.store, relocator, logging.Component(a.log, "processor"), opts...)
	return nil
}

// RunOnce runs one schedule pass.
func (a *PublisherAgent) RunOnce(ctx context.Context, events *scheduler.AgentEvents) error {
	startTime := time.Now()

	result, err := a.processor.Process(ctx)
	if err != nil {
		return err
	}

	metrics := PublisherMetrics{Processed: result.Processed, Timestamp: result.Timestamp}
	if events != nil && events.OnSuccess != nil {
		events.OnSuccess(metrics, time.Since(startTime))
	}
	return nil
}

// Process runs one pass and returns its result.
func (a *PublisherAgent) Process(ctx context.Context) (*models.PassResult, error) {
	return a.processor.Process(ctx)
}

// MarkPosted posts one item now; see Processor.MarkPosted.
func (a *PublisherAgent) MarkPosted(ctx context.Context, id string) (models.VideoItem, bool, error) {
	return a.processor.MarkPosted(ctx, id)
}

// Store returns the backing video store.
func (a *PublisherAgent) Store() *storage.VideoStore {
	return a.store
}

// Coach returns the improvement coach, or nil when no API key is configured.
func (a *PublisherAgent) Coach() *ai.Coach {
	return a.coach
}
