package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"shorts-stack/internal/models"
	"shorts-stack/shared/config"
)

// ErrNotPosted is returned when coaching is requested for an item without analytics.
var ErrNotPosted = errors.New("video has no analytics yet")

const maxIdeas = 5

// Coach asks Gemini for follow-up ideas based on a posted short's analytics.
type Coach struct {
	client *genai.Client
	model  string
	log    logrus.FieldLogger
}

func NewCoach(cfg *config.AIConfig, log logrus.FieldLogger) (*Coach, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Coach{
		client: client,
		model:  cfg.Model,
		log:    log,
	}, nil
}

// Suggest returns up to five concrete ideas for the next short on the same topic.
func (c *Coach) Suggest(ctx context.Context, video *models.VideoItem) ([]string, error) {
	if video == nil {
		return nil, fmt.Errorf("video cannot be nil")
	}
	if video.Analytics == nil {
		return nil, ErrNotPosted
	}

	parts := []*genai.Part{
		genai.NewPartFromText(buildCoachPrompt(video)),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to coach video %s: %w", video.ID, err)
	}

	responseText := result.Text()
	if responseText == "" {
		return nil, fmt.Errorf("no coaching response received for video %s", video.ID)
	}

	ideas, err := parseIdeas(responseText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse coaching response for video %s: %w", video.ID, err)
	}

	c.log.WithField("video_id", video.ID).Infof("Gemini returned %d ideas", len(ideas))
	return ideas, nil
}

func buildCoachPrompt(video *models.VideoItem) string {
	a := video.Analytics

	var drops []string
	for _, d := range a.DropOffMoments {
		drops = append(drops, fmt.Sprintf("%ds: %s", d.Timestamp, d.Description))
	}

	notes := "none"
	if len(video.RetentionNotes) > 0 {
		notes = strings.Join(video.RetentionNotes, "; ")
	}

	return fmt.Sprintf(`You are a YouTube Shorts retention coach.

SHORT:
Topic: %s
Caption: %s
Description: %s
Hook score: %d/100
Retention tactics used: %s

ANALYTICS:
Average view duration: %.1fs
Retention rate: %.0f%%
Click-through rate: %.2f%%
Drop-off moments:
- %s

Suggest at most %d concrete, specific changes for the next short on this topic.
Respond with JSON only, in the form:
{"ideas": ["...", "..."]}`,
		video.Topic,
		video.Caption,
		truncateString(video.Description, 500),
		video.HookScore,
		notes,
		a.AverageViewDuration,
		a.RetentionRate,
		a.ClickThroughRate,
		strings.Join(drops, "\n- "),
		maxIdeas,
	)
}

// parseIdeas pulls the JSON object out of a model response, tolerating code fences and prose.
func parseIdeas(response string) ([]string, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("no JSON found in response: %s", truncateString(response, 200))
	}

	var result struct {
		Ideas []string `json:"ideas"`
	}
	if err := json.Unmarshal([]byte(response[startIdx:endIdx+1]), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ideas: %w", err)
	}

	ideas := make([]string, 0, len(result.Ideas))
	for _, idea := range result.Ideas {
		if idea = strings.TrimSpace(idea); idea != "" {
			ideas = append(ideas, idea)
		}
	}
	if len(ideas) == 0 {
		return nil, fmt.Errorf("response contained no ideas")
	}
	if len(ideas) > maxIdeas {
		ideas = ideas[:maxIdeas]
	}
	return ideas, nil
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength] + "..."
}
