package youtube

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"shorts-stack/internal/models"
	"shorts-stack/shared/logging"
)

func TestGetTokenFromCache(t *testing.T) {
	tempDir := t.TempDir()
	tokenFile := filepath.Join(tempDir, "test_token.json")
	oauthConfig := &oauth2.Config{ClientID: "test-client-id", ClientSecret: "test-client-secret"}
	log := logging.Discard()

	t.Run("ExpiredTokenWithRefresh", func(t *testing.T) {
		expired := &oauth2.Token{
			AccessToken:  "expired-access-token",
			RefreshToken: "valid-refresh-token",
			Expiry:       time.Now().Add(-time.Hour),
		}
		if err := saveToken(tokenFile, expired); err != nil {
			t.Fatalf("Failed to save token: %v", err)
		}

		token, err := getToken(oauthConfig, tokenFile, log)
		if err != nil {
			t.Fatalf("Failed to get token: %v", err)
		}
		if token.RefreshToken != expired.RefreshToken {
			t.Errorf("Refresh token mismatch: got %s, want %s", token.RefreshToken, expired.RefreshToken)
		}
	})

	t.Run("ValidTokenWithoutRefresh", func(t *testing.T) {
		valid := &oauth2.Token{
			AccessToken: "valid-access-token",
			Expiry:      time.Now().Add(time.Hour),
		}
		if err := saveToken(tokenFile, valid); err != nil {
			t.Fatalf("Failed to save token: %v", err)
		}

		token, err := getToken(oauthConfig, tokenFile, log)
		if err != nil {
			t.Fatalf("Failed to get token: %v", err)
		}
		if token.AccessToken != valid.AccessToken {
			t.Errorf("Access token mismatch: got %s, want %s", token.AccessToken, valid.AccessToken)
		}
	})
}

func TestTokenFromFile(t *testing.T) {
	tempDir := t.TempDir()
	tokenFile := filepath.Join(tempDir, "test_token.json")

	t.Run("ValidTokenFile", func(t *testing.T) {
		testToken := &oauth2.Token{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(time.Hour),
		}
		data, _ := json.Marshal(testToken)
		if err := os.WriteFile(tokenFile, data, 0600); err != nil {
			t.Fatalf("Failed to write token file: %v", err)
		}

		token, err := tokenFromFile(tokenFile)
		if err != nil {
			t.Fatalf("Failed to read token from file: %v", err)
		}
		if token.AccessToken != testToken.AccessToken {
			t.Errorf("Access token mismatch: got %s, want %s", token.AccessToken, testToken.AccessToken)
		}
	})

	t.Run("NonExistentFile", func(t *testing.T) {
		if _, err := tokenFromFile(filepath.Join(tempDir, "nonexistent.json")); err == nil {
			t.Error("Expected error for non-existent file")
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		if err := os.WriteFile(tokenFile, []byte("invalid json"), 0600); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		if _, err := tokenFromFile(tokenFile); err == nil {
			t.Error("Expected error for invalid JSON")
		}
	})
}

func TestSaveToken(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("SaveWithNestedDirectory", func(t *testing.T) {
		tokenFile := filepath.Join(tempDir, "nested", "dir", "token.json")
		if err := saveToken(tokenFile, &oauth2.Token{AccessToken: "nested-access"}); err != nil {
			t.Fatalf("Failed to save token to nested directory: %v", err)
		}

		info, err := os.Stat(tokenFile)
		if err != nil {
			t.Fatalf("Token file was not created: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("Token file has incorrect permissions: %v, want 0600", info.Mode().Perm())
		}
	})

	t.Run("OverwriteExistingFile", func(t *testing.T) {
		tokenFile := filepath.Join(tempDir, "overwrite_token.json")
		if err := saveToken(tokenFile, &oauth2.Token{AccessToken: "first-token"}); err != nil {
			t.Fatalf("Failed to save first token: %v", err)
		}
		if err := saveToken(tokenFile, &oauth2.Token{AccessToken: "second-token"}); err != nil {
			t.Fatalf("Failed to save second token: %v", err)
		}

		saved, _ := tokenFromFile(tokenFile)
		if saved.AccessToken != "second-token" {
			t.Errorf("Token was not overwritten: got %s, want second-token", saved.AccessToken)
		}
	})
}

func TestTokenSaverReturnsValidToken(t *testing.T) {
	ts := &tokenSaver{
		config:    &oauth2.Config{ClientID: "test"},
		token:     &oauth2.Token{AccessToken: "still-valid", Expiry: time.Now().Add(time.Hour)},
		tokenFile: filepath.Join(t.TempDir(), "token.json"),
		log:       logging.Discard(),
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			tok, err := ts.Token()
			if err != nil || tok.AccessToken != "still-valid" {
				t.Errorf("Token() = %v, %v", tok, err)
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if _, err := os.Stat(ts.tokenFile); !os.IsNotExist(err) {
		t.Error("Unrefreshed token should not be written to disk")
	}
}

func TestBuildUpload(t *testing.T) {
	tests := []struct {
		name      string
		video     models.VideoItem
		wantTitle string
		wantDesc  string
	}{
		{
			name:      "Adds shorts tag",
			video:     models.VideoItem{Topic: "Desk setup", Caption: "Three upgrades", Description: "Links below"},
			wantTitle: "Desk setup #shorts",
			wantDesc:  "Three upgrades\n\nLinks below",
		},
		{
			name:      "Keeps existing tag",
			video:     models.VideoItem{Topic: "Morning #Shorts", Caption: "  "},
			wantTitle: "Morning #Shorts",
			wantDesc:  "",
		},
		{
			name:      "Untitled",
			video:     models.VideoItem{Description: "only description"},
			wantTitle: "Untitled Short #shorts",
			wantDesc:  "only description",
		},
		{
			name:      "Long title truncated",
			video:     models.VideoItem{Topic: strings.Repeat("a", 120)},
			wantTitle: strings.Repeat("a", 100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildUpload(&tt.video, "unlisted")
			if got.Snippet.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Snippet.Title, tt.wantTitle)
			}
			if got.Snippet.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", got.Snippet.Description, tt.wantDesc)
			}
			if got.Status.PrivacyStatus != "unlisted" {
				t.Errorf("PrivacyStatus = %q, want unlisted", got.Status.PrivacyStatus)
			}
		})
	}
}
