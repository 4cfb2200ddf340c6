// Package gmail wraps the Gmail API: OAuth authentication, fetching
// newsletter messages, sending the briefing, and inbox management.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"newsbrief/internal/core"
	"newsbrief/internal/logger"
)

const (
	// batchModifyLimit is the Gmail API cap on IDs per batchModify call.
	batchModifyLimit = 1000

	fetchRetries    = 3
	fetchRetryDelay = 2 * time.Second
)

// Client is a thin wrapper around the Gmail API service.
type Client struct {
	svc *gmailapi.Service
}

// NewClient wraps an authenticated Gmail service.
func NewClient(svc *gmailapi.Service) *Client {
	return &Client{svc: svc}
}

// FetchSince fetches all messages matching the base query received after
// the given time. Message bodies are fetched one by one; rate-limited
// fetches are retried with a short backoff and failures are skipped.
func (c *Client) FetchSince(ctx context.Context, baseQuery string, since time.Time) ([]core.Email, error) {
	query := baseQuery
	if !since.IsZero() {
		query = fmt.Sprintf("%s after:%d", baseQuery, since.Unix())
	}
	logger.Infof("Gmail query: %s", query)

	ids, err := c.listMessageIDs(ctx, query)
	if err != nil {
		return nil, err
	}
	logger.Infof("Found %d message IDs, fetching bodies", len(ids))

	emails := make([]core.Email, 0, len(ids))
	for _, id := range ids {
		msg, err := c.getMessage(ctx, id)
		if err != nil {
			logger.Warnf("Failed to fetch message %s: %v", id, err)
			continue
		}
		email, ok := parseMessage(msg)
		if !ok {
			logger.Warnf("Malformed message %s, skipping", id)
			continue
		}
		emails = append(emails, email)
	}

	logger.Infof("Fetched %d messages", len(emails))
	return emails, nil
}

// listMessageIDs pages through the message list for a query.
func (c *Client) listMessageIDs(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		call := c.svc.Users.Messages.List("me").Q(query).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return ids, nil
}

// getMessage fetches one full message, retrying on rate limits.
func (c *Client) getMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	var lastErr error
	for attempt := 0; attempt < fetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * fetchRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		msg, err := c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err == nil {
			return msg, nil
		}
		if !isRateLimited(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("rate limited after %d attempts: %w", fetchRetries, lastErr)
}

func isRateLimited(err error) bool {
	if gerr, ok := err.(*googleapi.Error); ok {
		return gerr.Code == 429 || gerr.Code == 503
	}
	return strings.Contains(err.Error(), "rateLimitExceeded")
}

// parseMessage converts a full Gmail message into a core.Email. The second
// return value is false when the payload is missing.
func parseMessage(msg *gmailapi.Message) (core.Email, bool) {
	if msg == nil || msg.Payload == nil {
		return core.Email{}, false
	}

	email := core.Email{
		ID:      msg.Id,
		Subject: "(no subject)",
		Sender:  "unknown",
		Snippet: msg.Snippet,
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			email.Subject = h.Value
		case "from":
			email.Sender = h.Value
		case "date":
			email.Date = h.Value
		}
	}

	html, text := extractBody(msg.Payload)
	email.BodyHTML = html
	email.BodyText = text
	return email, true
}

// extractBody walks the MIME tree collecting text/html and text/plain parts.
func extractBody(payload *gmailapi.MessagePart) (html string, text string) {
	var htmlParts, textParts []string

	var walk func(part *gmailapi.MessagePart)
	walk = func(part *gmailapi.MessagePart) {
		if part == nil {
			return
		}
		if part.Body != nil && part.Body.Data != "" {
			decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(part.Body.Data)
			if err == nil {
				switch part.MimeType {
				case "text/html":
					htmlParts = append(htmlParts, string(decoded))
				case "text/plain":
					textParts = append(textParts, string(decoded))
				}
			}
		}
		for _, sub := range part.Parts {
			walk(sub)
		}
	}
	walk(payload)

	return strings.Join(htmlParts, "\n"), strings.Join(textParts, "\n")
}

// ProfileAddress returns the authenticated user's email address.
func (c *Client) ProfileAddress(ctx context.Context) (string, error) {
	profile, err := c.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to fetch Gmail profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// SendBriefing sends the briefing as a multipart/alternative email. An
// empty recipient sends to the authenticated user's own address.
func (c *Client) SendBriefing(ctx context.Context, briefing core.Briefing, recipient string) error {
	if recipient == "" {
		addr, err := c.ProfileAddress(ctx)
		if err != nil {
			return err
		}
		recipient = addr
	}

	raw := buildMessage(recipient, briefing.Subject, briefing.Markdown, briefing.HTML)
	_, err := c.svc.Users.Messages.Send("me", &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send briefing: %w", err)
	}

	logger.Infof("Briefing sent to %s", recipient)
	return nil
}

// buildMessage assembles a base64url-encoded RFC 822 message with plain
// text and HTML alternatives.
func buildMessage(to, subject, textBody, htmlBody string) string {
	boundary := "newsbrief-boundary-42"

	var b strings.Builder
	b.WriteString("To: " + to + "\r\n")
	// Subjects carry non-ASCII (the em dash), so encode per RFC 2047
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n")
	b.WriteString("\r\n")

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(textBody)
	b.WriteString("\r\n")

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	b.WriteString("--" + boundary + "--\r\n")

	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

// EnsureLabel finds or creates a Gmail label and returns its ID.
func (c *Client) EnsureLabel(ctx context.Context, name string) (string, error) {
	resp, err := c.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	for _, label := range resp.Labels {
		if label.Name == name {
			logger.Debugf("Found existing label %q (id=%s)", name, label.Id)
			return label.Id, nil
		}
	}

	created, err := c.svc.Users.Labels.Create("me", &gmailapi.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label %q: %w", name, err)
	}
	logger.Infof("Created Gmail label %q (id=%s)", name, created.Id)
	return created.Id, nil
}

// MarkAsRead removes the UNREAD label from the given messages.
func (c *Client) MarkAsRead(ctx context.Context, messageIDs []string) error {
	if err := c.batchModify(ctx, messageIDs, nil, []string{"UNREAD"}); err != nil {
		return err
	}
	if len(messageIDs) > 0 {
		logger.Infof("Marked %d messages as read", len(messageIDs))
	}
	return nil
}

// ApplyLabel adds a label to messages, leaving them unread.
func (c *Client) ApplyLabel(ctx context.Context, messageIDs []string, labelID string) error {
	if err := c.batchModify(ctx, messageIDs, []string{labelID}, nil); err != nil {
		return err
	}
	if len(messageIDs) > 0 {
		logger.Infof("Moved %d messages to label %s", len(messageIDs), labelID)
	}
	return nil
}

func (c *Client) batchModify(ctx context.Context, ids, addLabels, removeLabels []string) error {
	for start := 0; start < len(ids); start += batchModifyLimit {
		end := start + batchModifyLimit
		if end > len(ids) {
			end = len(ids)
		}
		req := &gmailapi.BatchModifyMessagesRequest{
			Ids:            ids[start:end],
			AddLabelIds:    addLabels,
			RemoveLabelIds: removeLabels,
		}
		if err := c.svc.Users.Messages.BatchModify("me", req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to modify messages: %w", err)
		}
	}
	return nil
}
