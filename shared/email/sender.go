package email

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"

	"shorts-stack/internal/models"
	"shorts-stack/shared/config"
)

// PostedDigest is the template payload for a publish notification.
type PostedDigest struct {
	Date   time.Time
	Videos []models.VideoItem
}

type Sender struct {
	config *config.EmailConfig
	dialer *gomail.Dialer
}

func NewSender(cfg *config.EmailConfig) *Sender {
	return &Sender{
		config: cfg,
		dialer: gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.Username, cfg.Password),
	}
}

// Notify emails a digest of freshly posted videos. An empty list sends nothing.
func (s *Sender) Notify(videos []models.VideoItem) error {
	if len(videos) == 0 {
		return nil // Nothing posted
	}

	digest := &PostedDigest{Date: time.Now(), Videos: videos}
	subject := fmt.Sprintf("Shorts Publisher - %d video(s) posted (%s)", len(videos), digest.Date.Format("Jan 2, 2006"))

	body, err := s.generateEmailBody(digest)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}

	return s.SendHTML(subject, body)
}

// SendHTML sends an email with custom HTML content
func (s *Sender) SendHTML(subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.config.FromEmail)
	msg.SetHeader("To", s.config.ToEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email via %s:%d: %w", s.config.SMTPServer, s.config.SMTPPort, err)
	}
	return nil
}

const digestTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Shorts posted</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; }
        .header { background-color: #E53935; color: white; padding: 20px; border-radius: 8px; margin-bottom: 20px; text-align: center; }
        .video { background-color: #f8f9fa; padding: 15px; border-radius: 8px; margin-bottom: 15px; }
        .metric { display: inline-block; margin: 5px 15px 5px 0; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>🎬 {{len .Videos}} Short(s) Posted</h1>
        <p>{{.Date.Format "Monday, January 2, 2006 at 3:04 PM MST"}}</p>
    </div>
    {{range .Videos}}
    <div class="video">
        <h2>{{.Topic}}</h2>
        <p>{{.Caption}}</p>
        {{with .Analytics}}
        <span class="metric">Retention {{printf "%.0f%%" .RetentionRate}}</span>
        <span class="metric">Avg view {{printf "%.1fs" .AverageViewDuration}}</span>
        <span class="metric">CTR {{printf "%.2f%%" .ClickThroughRate}}</span>
        <ul>
        {{range .ImprovementIdeas}}<li>{{.}}</li>{{end}}
        </ul>
        {{end}}
        {{with .FilePath}}<p><small>File: {{.}}</small></p>{{end}}
    </div>
    {{end}}
</body>
</html>
`

var digestTmpl = template.Must(template.New("digest").Parse(digestTemplate))

func (s *Sender) generateEmailBody(digest *PostedDigest) (string, error) {
	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, digest); err != nil {
		return "", err
	}
	return buf.String(), nil
}
