// Package notifier e-mails a digest of catalog changes found by the refresh job.
package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/mail.v2"

	"toon-shelf/catalog"
)

// CatalogChange is the difference between two catalog snapshots.
type CatalogChange struct {
	Added     []catalog.Entry
	Removed   []catalog.Entry
	SourceURL string
}

// Empty reports whether nothing changed.
func (c CatalogChange) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Sender delivers a composed message. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier handles sending email notifications
type EmailNotifier struct {
	senderEmail    string
	recipientEmail string
	htmlTemplate   *template.Template
	sender         Sender
	now            func() time.Time
	log            *zap.Logger
}

// EmailConfig contains configuration for email notifications
type EmailConfig struct {
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SenderEmail    string
	SenderPassword string
	RecipientEmail string
}

// Enabled reports whether enough is configured to send mail.
func (c EmailConfig) Enabled() bool {
	return c.SMTPHost != "" && c.SenderEmail != "" && c.RecipientEmail != ""
}

var digestTemplate = template.Must(template.New("digest").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Toon Shelf - Catalog Update</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; }
        h1 { color: #ff7a00; }
        h2 { color: #0071c5; margin-top: 30px; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
        th { background-color: #f4f4f4; text-align: left; padding: 10px; }
        td { padding: 10px; border-bottom: 1px solid #ddd; }
        .added { background-color: #e8f5e9; }
        .removed { background-color: #fbe9e7; }
        .footer { font-size: 12px; color: #666; margin-top: 50px; text-align: center; }
    </style>
</head>
<body>
    <h1>Toon Shelf - Catalog Update</h1>
    <p>The catalog at {{.SourceURL}} changed on {{.Date}}.</p>

    {{if .Added}}
    <h2>Added ({{len .Added}})</h2>
    <table>
        <tr><th>Title</th><th>Year</th><th>Category</th><th>Episodes</th><th>Rating</th></tr>
        {{range .Added}}
        <tr class="added">
            <td>{{.Title}}{{if .EnglishTitle}} ({{.EnglishTitle}}){{end}}</td>
            <td>{{if .Year}}{{.Year}}{{else}}-{{end}}</td>
            <td>{{if .Category}}{{.Category}}{{else}}-{{end}}</td>
            <td>{{len .Episodes}}</td>
            <td>{{if .Rating}}{{.Rating}}/10{{else}}-{{end}}</td>
        </tr>
        {{end}}
    </table>
    {{end}}

    {{if .Removed}}
    <h2>Removed ({{len .Removed}})</h2>
    <table>
        <tr><th>Title</th><th>Category</th></tr>
        {{range .Removed}}
        <tr class="removed"><td>{{.Title}}</td><td>{{if .Category}}{{.Category}}{{else}}-{{end}}</td></tr>
        {{end}}
    </table>
    {{end}}

    <div class="footer">
        <p>This is an automated email from Toon Shelf. Please do not reply.</p>
    </div>
</body>
</html>
`))

// NewEmailNotifier creates a notifier that sends through SMTP.
func NewEmailNotifier(config EmailConfig, logger *zap.Logger) *EmailNotifier {
	username := config.SMTPUsername
	if username == "" {
		username = config.SenderEmail
	}
	dialer := gomail.NewDialer(config.SMTPHost, config.SMTPPort, username, config.SenderPassword)
	return NewEmailNotifierWithSender(config, dialer, logger)
}

// NewEmailNotifierWithSender creates a notifier that hands messages to sender.
func NewEmailNotifierWithSender(config EmailConfig, sender Sender, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailNotifier{
		senderEmail:    config.SenderEmail,
		recipientEmail: config.RecipientEmail,
		htmlTemplate:   digestTemplate,
		sender:         sender,
		now:            time.Now,
		log:            logger,
	}
}

// GetEmailConfigFromEnv loads email configuration from environment variables
func GetEmailConfigFromEnv(logger *zap.Logger) EmailConfig {
	if logger == nil {
		logger = zap.NewNop()
	}

	smtpPort := 587
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil || p <= 0 {
			logger.Warn("Invalid SMTP port, using default", zap.String("port", portStr), zap.Int("default", smtpPort))
		} else {
			smtpPort = p
		}
	}

	config := EmailConfig{
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       smtpPort,
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),
		SenderEmail:    os.Getenv("SMTP_SENDER"),
		SenderPassword: os.Getenv("SMTP_PASSWORD"),
		RecipientEmail: os.Getenv("RECIPIENT_EMAIL"),
	}

	logger.Info("Email configuration",
		zap.String("host", config.SMTPHost),
		zap.Int("port", config.SMTPPort),
		zap.String("sender", config.SenderEmail),
		zap.Bool("password_set", config.SenderPassword != ""),
		zap.String("recipient", config.RecipientEmail),
	)
	return config
}

// NotifyCatalogChange sends a digest of change. An empty change sends nothing.
func (n *EmailNotifier) NotifyCatalogChange(change CatalogChange) error {
	if change.Empty() {
		n.log.Debug("No catalog changes to notify about")
		return nil
	}
	if n.recipientEmail == "" {
		n.log.Info("No recipient email configured, skipping notification")
		return nil
	}

	data := struct {
		Date      string
		SourceURL string
		Added     []catalog.Entry
		Removed   []catalog.Entry
	}{
		Date:      n.now().Format("January 2, 2006 at 3:04 PM"),
		SourceURL: change.SourceURL,
		Added:     change.Added,
		Removed:   change.Removed,
	}

	var body bytes.Buffer
	if err := n.htmlTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.senderEmail)
	m.SetHeader("To", n.recipientEmail)
	m.SetHeader("Subject", fmt.Sprintf("Toon Shelf: %d added, %d removed", len(change.Added), len(change.Removed)))

	plainText := fmt.Sprintf(
		"Toon Shelf Catalog Update\n\n"+
			"The catalog at %s changed on %s.\n"+
			"Added: %d\nRemoved: %d\n\n"+
			"This is an automated email from Toon Shelf. Please do not reply.",
		change.SourceURL, data.Date, len(change.Added), len(change.Removed))
	m.SetBody("text/plain", plainText)
	m.AddAlternative("text/html", body.String())

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.log.Info("Catalog change notification sent",
		zap.String("recipient", n.recipientEmail),
		zap.Int("added", len(change.Added)),
		zap.Int("removed", len(change.Removed)),
	)
	return nil
}
