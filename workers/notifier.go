// workers/notifier.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"race-registration-system/services"
)

// Notifier informs the notification service of awards and approvals.
// Delivery is best-effort: a few attempts with backoff, failures logged
// and swallowed — a lost notification never surfaces as a check-in or
// booking failure.
type Notifier struct {
	BaseURL     string
	Token       string
	HTTPClient  *http.Client
	MaxAttempts int
}

func NewNotifier(baseURL, serviceToken string) *Notifier {
	return &Notifier{
		BaseURL:     baseURL,
		Token:       serviceToken,
		MaxAttempts: 3,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type notificationPayload struct {
	UserID  string `json:"user_id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// NotifyAward tells the notification service about a freshly earned
// badge or border.
func (n *Notifier) NotifyAward(ctx context.Context, award services.Award) {
	payload := notificationPayload{
		UserID:  award.ExternalUserID,
		Type:    fmt.Sprintf("%s_awarded", award.Kind),
		Title:   "Achievement unlocked!",
		Message: fmt.Sprintf("You earned: %q", award.Title),
	}
	n.send(ctx, payload)
}

func (n *Notifier) send(ctx context.Context, payload notificationPayload) {
	if n.BaseURL == "" {
		return // notifications not configured
	}

	body, _ := json.Marshal(payload)
	for attempt := 1; attempt <= n.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "POST",
			n.BaseURL+"/api/v1/notifications", bytes.NewReader(body))
		if err != nil {
			log.Printf("❌ [NOTIFY] failed to build request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Service-Token", n.Token)

		resp, err := n.HTTPClient.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode < 300 {
				return
			}
			err = fmt.Errorf("notification service returned %d", resp.StatusCode)
		}

		log.Printf("⚠️ [NOTIFY] attempt %d/%d failed for user %s: %v",
			attempt, n.MaxAttempts, payload.UserID, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	log.Printf("❌ [NOTIFY] giving up on notification for user %s", payload.UserID)
}
