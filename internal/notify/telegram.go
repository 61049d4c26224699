package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/risk"
	"github.com/devalgupta404/IntegrityInspect/internal/config"
)

const defaultAPI = "https://api.telegram.org"

// Notifier alerts responders about a completed assessment.
type Notifier interface {
	Notify(ctx context.Context, ra *assessment.RiskAssessment) error
}

// Alertable reports whether responders should be alerted for level.
func Alertable(level risk.Level) bool {
	return level == risk.High || level == risk.Critical
}

type Telegram struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
}

type Option func(*Telegram)

// WithBaseURL points the client at another Bot API host.
func WithBaseURL(u string) Option {
	return func(t *Telegram) { t.baseURL = strings.TrimRight(u, "/") }
}

func NewTelegram(token, chatID string, opts ...Option) *Telegram {
	t := &Telegram{
		baseURL:    defaultAPI,
		token:      token,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Notify(ctx context.Context, ra *assessment.RiskAssessment) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: Message(ra)})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	defer res.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("telegram sendMessage: status %d: %w", res.StatusCode, err)
	}
	if res.StatusCode != http.StatusOK || !out.OK {
		return fmt.Errorf("telegram sendMessage: status %d: %s", res.StatusCode, out.Description)
	}
	return nil
}

// Message renders the alert text for ra.
func Message(ra *assessment.RiskAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Structural risk %s (score %d/100)\n", strings.ToUpper(string(ra.RiskLevel)), ra.RiskScore)
	fmt.Fprintf(&b, "Assessment: %s\n", ra.AssessmentID)
	fmt.Fprintf(&b, "Building: %s, %d floors, %s, built %d\n",
		ra.Building.Type, ra.Building.Floors, ra.Building.Material, ra.Building.YearBuilt)
	if ra.Building.Latitude != 0 || ra.Building.Longitude != 0 {
		fmt.Fprintf(&b, "Location: %.5f, %.5f\n", ra.Building.Latitude, ra.Building.Longitude)
	}
	fmt.Fprintf(&b, "Safety factor: %s, failure in %.1f s\n", ra.SafetyFactor, ra.FailureTime)
	if len(ra.SafetyZones) > 0 {
		parts := make([]string, 0, len(ra.SafetyZones))
		for _, z := range ra.SafetyZones {
			parts = append(parts, fmt.Sprintf("%s %.0f m", z.Level, z.Radius))
		}
		fmt.Fprintf(&b, "Zones: %s\n", strings.Join(parts, ", "))
	}
	if len(ra.Recommendations) > 0 {
		fmt.Fprintf(&b, "First action: %s", ra.Recommendations[0])
	}
	return strings.TrimRight(b.String(), "\n")
}

type Noop struct{}

func (Noop) Notify(context.Context, *assessment.RiskAssessment) error { return nil }

// New returns a Telegram notifier, or Noop when the bot is not configured.
func New(cfg config.TelegramConfig) Notifier {
	if cfg.Token == "" {
		return Noop{}
	}
	return NewTelegram(cfg.Token, cfg.ChatID)
}
