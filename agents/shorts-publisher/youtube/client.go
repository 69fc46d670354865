package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"shorts-stack/internal/models"
	"shorts-stack/shared/config"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 5000
	// People & Blogs
	defaultCategoryID = "22"
)

// ErrNoFile is returned when an item has no local file to upload.
var ErrNoFile = errors.New("video has no file to upload")

type Client struct {
	service *youtube.Service
	config  *config.YouTubeConfig
	log     logrus.FieldLogger
}

func NewClient(cfg *config.YouTubeConfig, log logrus.FieldLogger) (*Client, error) {
	ctx := context.Background()

	// Create OAuth2 config for the device authorization flow.
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{youtube.YoutubeUploadScope},
		Endpoint:     google.Endpoint,
	}

	token, err := getToken(oauthConfig, cfg.TokenFile, log)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth token: %w", err)
	}

	// Create token source that auto-refreshes and saves token
	tokenSource := &tokenSaver{
		config:    oauthConfig,
		token:     token,
		tokenFile: cfg.TokenFile,
		log:       log,
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)

	service, err := youtube.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return &Client{
		service: service,
		config:  cfg,
		log:     log,
	}, nil
}

// Publish uploads the item's file and returns the new YouTube video id.
func (c *Client) Publish(ctx context.Context, video *models.VideoItem) (string, error) {
	if video.FilePath == nil || *video.FilePath == "" {
		return "", ErrNoFile
	}

	f, err := os.Open(*video.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoFile
		}
		return "", fmt.Errorf("failed to open %s: %w", *video.FilePath, err)
	}
	defer f.Close()

	c.log.WithField("video_id", video.ID).Infof("Uploading %s to YouTube", filepath.Base(*video.FilePath))

	resp, err := c.service.Videos.Insert([]string{"snippet", "status"}, buildUpload(video, c.config.PrivacyStatus)).
		Media(f).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload video %s: %w", video.ID, err)
	}

	c.log.WithField("video_id", video.ID).Infof("Uploaded as https://youtube.com/shorts/%s", resp.Id)
	return resp.Id, nil
}

// buildUpload maps an item onto the YouTube resource inserted for it.
func buildUpload(video *models.VideoItem, privacy string) *youtube.Video {
	title := strings.TrimSpace(video.Topic)
	if title == "" {
		title = "Untitled Short"
	}
	if !strings.Contains(strings.ToLower(title), "#shorts") && len(title)+len(" #shorts") <= maxTitleLength {
		title += " #shorts"
	}

	var sections []string
	for _, s := range []string{video.Caption, video.Description} {
		if s = strings.TrimSpace(s); s != "" {
			sections = append(sections, s)
		}
	}

	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       truncateRunes(title, maxTitleLength),
			Description: truncateRunes(strings.Join(sections, "\n\n"), maxDescriptionLength),
			CategoryId:  defaultCategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: privacy,
		},
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// tokenSaver wraps an oauth2.TokenSource to automatically save refreshed tokens.
type tokenSaver struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenFile string
	log       logrus.FieldLogger
	mu        sync.Mutex // Protects concurrent token refresh operations
}

// Token implements oauth2.TokenSource. Refreshed tokens are persisted so they
// survive restarts.
func (ts *tokenSaver) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	tokenSource := ts.config.TokenSource(context.Background(), ts.token)

	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, err
	}

	if newToken.AccessToken != ts.token.AccessToken {
		ts.log.Info("Token refreshed, saving to file")
		ts.token = newToken
		if err := saveToken(ts.tokenFile, newToken); err != nil {
			ts.log.Warnf("Failed to save refreshed token: %v", err)
		}
	}

	return newToken, nil
}

// getToken loads a cached token, preferring any token that carries a refresh
// token even when expired. The device flow only runs when nothing usable is cached.
func getToken(config *oauth2.Config, tokenFile string, log logrus.FieldLogger) (*oauth2.Token, error) {
	tok, err := tokenFromFile(tokenFile)
	if err == nil {
		if tok.RefreshToken != "" {
			log.Infof("Loaded token from file (expires: %v)", tok.Expiry)
			return tok, nil
		}
		if tok.Valid() {
			return tok, nil
		}
	}

	log.Info("Getting new token from web...")
	tok, err = getTokenWithDeviceFlow(config)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			log.Errorf("Device authorization response failed (%s): %s", retrieveErr.Response.Status, strings.TrimSpace(string(retrieveErr.Body)))
		}
		return nil, fmt.Errorf("device authorization failed: %w. Ensure your OAuth client is created as 'TVs and Limited Input devices' and that the YouTube Data API v3 is enabled", err)
	}

	if err := saveToken(tokenFile, tok); err != nil {
		log.Warnf("Failed to save token: %v", err)
	}
	return tok, nil
}

func getTokenWithDeviceFlow(config *oauth2.Config) (*oauth2.Token, error) {
	ctx := context.Background()

	resp, err := config.DeviceAuth(ctx, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("unable to start device authorization: %w", err)
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 80))
	fmt.Printf("YOUTUBE DEVICE AUTHORIZATION REQUIRED (upload scope)\n")
	fmt.Printf("%s\n", strings.Repeat("=", 80))
	fmt.Printf("1. Visit %s in your browser (any device works).\n", resp.VerificationURI)
	fmt.Printf("2. Enter this code when prompted: %s\n\n", resp.UserCode)
	if completeURL := strings.TrimSpace(resp.VerificationURIComplete); completeURL != "" {
		fmt.Printf("   Or open directly: %s\n\n", completeURL)
	}
	fmt.Printf("Waiting for authorization to complete... (Ctrl+C to cancel)\n")
	fmt.Printf("%s\n", strings.Repeat("-", 80))

	tok, err := config.DeviceAccessToken(ctx, resp, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("device authorization did not complete: %w", err)
	}

	fmt.Printf("\nAuthorization successful! Token saved.\n")
	fmt.Printf("%s\n\n", strings.Repeat("=", 80))

	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("unable to create token directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode oauth token: %w", err)
	}
	return nil
}
