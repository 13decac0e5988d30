package service

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"portfolio-api/internal/domain"
	"portfolio-api/internal/service/llm"
	"portfolio-api/pkg/logger"
)

const (
	mailgunBaseURL  = "https://api.mailgun.net/v3"
	mailgunTimeout  = 15 * time.Second
	minNotifyTurns  = 3
	summaryPrompt   = "Summarize this conversation between a portfolio visitor and my AI assistant in 2-3 sentences. Focus on what the visitor wanted and anything notable about them."
	summaryDeadline = 20 * time.Second
)

// notificationService emails conversation transcripts through Mailgun.
// Delivery is strictly best-effort: every failure is logged and dropped.
type notificationService struct {
	httpClient *http.Client
	logger     *logger.Logger

	baseURL    string
	domain     string
	apiKey     string
	to         string
	from       string
	summarizer llm.Provider // optional; nil skips the summary block
}

// NewNotificationService creates the transcript mailer. An empty domain or
// API key produces a disabled service that drops everything quietly.
func NewNotificationService(mailDomain, apiKey, to, from string, summarizer llm.Provider, logger *logger.Logger) NotificationService {
	if from == "" && mailDomain != "" {
		from = fmt.Sprintf("Portfolio Chat <chat@%s>", mailDomain)
	}
	return &notificationService{
		httpClient: &http.Client{Timeout: mailgunTimeout},
		logger:     logger,
		baseURL:    mailgunBaseURL,
		domain:     mailDomain,
		apiKey:     apiKey,
		to:         to,
		from:       from,
		summarizer: summarizer,
	}
}

// SendTranscript emails the session transcript to the site owner. Sessions
// with fewer than three stored messages are considered noise and skipped.
func (s *notificationService) SendTranscript(ctx context.Context, session *domain.Session, trigger string) error {
	if s.domain == "" || s.apiKey == "" || s.to == "" {
		s.logger.Debug("Mail delivery not configured, skipping transcript")
		return nil
	}
	if session.MessageCount < minNotifyTurns {
		s.logger.WithFields(map[string]interface{}{
			"session_id":    session.ID,
			"message_count": session.MessageCount,
		}).Debug("Conversation too short to notify")
		return nil
	}

	summary := s.summarize(ctx, session)

	subject := fmt.Sprintf("Portfolio chat transcript (%s)", trigger)
	if session.UserName != "" {
		subject = fmt.Sprintf("Portfolio chat with %s (%s)", session.UserName, trigger)
	}

	form := url.Values{}
	form.Set("from", s.from)
	form.Set("to", s.to)
	form.Set("subject", subject)
	form.Set("text", renderTextTranscript(session, summary))
	form.Set("html", renderHTMLTranscript(session, summary))
	form.Set("o:tag", "chat-transcript")

	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, s.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build mail request: %w", err)
	}
	req.SetBasicAuth("api", s.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailgun returned %d: %s", resp.StatusCode, string(body))
	}

	s.logger.WithFields(map[string]interface{}{
		"session_id":    session.ID,
		"message_count": session.MessageCount,
		"trigger":       trigger,
	}).Info("Transcript emailed")
	return nil
}

// summarize asks the summarizer model for a short digest of the conversation
func (s *notificationService) summarize(ctx context.Context, session *domain.Session) string {
	if s.summarizer == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, summaryDeadline)
	defer cancel()

	var sb strings.Builder
	for _, msg := range session.Messages {
		fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Content)
	}

	summary, err := s.summarizer.Invoke(ctx, summaryPrompt, nil, sb.String())
	if err != nil {
		s.logger.WithError(err).Debug("Transcript summary failed, sending without it")
		return ""
	}
	return summary
}

func renderTextTranscript(session *domain.Session, summary string) string {
	var sb strings.Builder

	sb.WriteString("New portfolio chat conversation\n")
	sb.WriteString("================================\n\n")
	if session.UserName != "" {
		fmt.Fprintf(&sb, "Name: %s\n", session.UserName)
	}
	if session.UserEmail != "" {
		fmt.Fprintf(&sb, "Email: %s\n", session.UserEmail)
	}
	if session.UserLinkedIn != "" {
		fmt.Fprintf(&sb, "LinkedIn: %s\n", session.UserLinkedIn)
	}
	fmt.Fprintf(&sb, "Session: %s\n", session.ID)
	fmt.Fprintf(&sb, "Messages: %d\n", session.MessageCount)
	fmt.Fprintf(&sb, "Started: %s\n\n", session.StartedAt.Format(time.RFC1123))

	if summary != "" {
		sb.WriteString("Summary\n-------\n")
		sb.WriteString(summary)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Transcript\n----------\n")
	for _, msg := range session.Messages {
		label := "Visitor"
		if msg.Role == "assistant" {
			label = "Assistant"
		}
		fmt.Fprintf(&sb, "[%s] %s:\n%s\n\n", msg.Timestamp.Format("15:04:05"), label, msg.Content)
	}
	return sb.String()
}

func renderHTMLTranscript(session *domain.Session, summary string) string {
	var sb strings.Builder

	sb.WriteString(`<div style="font-family:Arial,sans-serif;max-width:640px;margin:0 auto">`)
	sb.WriteString(`<h2 style="color:#2c3e50">New portfolio chat conversation</h2>`)

	sb.WriteString(`<table style="border-collapse:collapse;margin-bottom:16px">`)
	writeRow := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&sb,
			`<tr><td style="padding:4px 12px 4px 0;font-weight:bold">%s</td><td style="padding:4px 0">%s</td></tr>`,
			label, html.EscapeString(value))
	}
	writeRow("Name", session.UserName)
	writeRow("Email", session.UserEmail)
	writeRow("LinkedIn", session.UserLinkedIn)
	writeRow("Session", session.ID)
	writeRow("Messages", fmt.Sprintf("%d", session.MessageCount))
	writeRow("Started", session.StartedAt.Format(time.RFC1123))
	sb.WriteString(`</table>`)

	if summary != "" {
		fmt.Fprintf(&sb,
			`<div style="background:#f0f7ff;border-left:4px solid #3498db;padding:12px;margin-bottom:16px">%s</div>`,
			html.EscapeString(summary))
	}

	for _, msg := range session.Messages {
		background := "#f8f9fa"
		label := "Visitor"
		if msg.Role == "assistant" {
			background = "#eef7ee"
			label = "Assistant"
		}
		fmt.Fprintf(&sb,
			`<div style="background:%s;border-radius:6px;padding:10px;margin-bottom:8px"><strong>%s</strong> <span style="color:#888;font-size:12px">%s</span><br>%s</div>`,
			background, label, msg.Timestamp.Format("15:04:05"),
			html.EscapeString(msg.Content))
	}

	sb.WriteString(`</div>`)
	return sb.String()
}
