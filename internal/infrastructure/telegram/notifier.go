package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier announces review batches to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at another bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// Configured reports whether token and chat are set.
func (n *Notifier) Configured() bool {
	return n != nil && n.botToken != "" && n.chatID != ""
}

// NotifyReviewSession posts a plain-text message with the batch size and review
// link. Session ids and review types contain underscores, which Telegram's
// Markdown parser rejects as unclosed entities.
func (n *Notifier) NotifyReviewSession(ctx context.Context, session domain.ReviewSession, reviewURL string) error {
	if !n.Configured() || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}
	return n.send(ctx, formatSession(session, reviewURL))
}

func formatSession(session domain.ReviewSession, reviewURL string) string {
	var b strings.Builder
	b.WriteString("New review batch\n")
	fmt.Fprintf(&b, "%d images waiting", session.ItemsQueued)
	if session.ReviewType != "" {
		fmt.Fprintf(&b, " (%s)", session.ReviewType)
	}
	fmt.Fprintf(&b, "\nExpires: %s\n", session.ExpiresAt.UTC().Format(time.RFC1123))
	b.WriteString(reviewURL)
	return b.String()
}

func (n *Notifier) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}
