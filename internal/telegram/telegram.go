package telegram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ramwatch/internal/models"
	"ramwatch/internal/scorer"
)

// DeliveryResult is the per-recipient outcome of one notification.
type DeliveryResult struct {
	ChatID string
	Err    error
}

// Service sends notifications through the Telegram Bot API.
type Service struct {
	logger  *logrus.Logger
	client  *http.Client
	baseURL string
	token   string
	chatIDs []string
}

func NewService(token string, chatIDs []string, logger *logrus.Logger) *Service {
	return &Service{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: "https://api.telegram.org",
		token:   token,
		chatIDs: chatIDs,
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (s *Service) SetBaseURL(url string) {
	s.baseURL = strings.TrimRight(url, "/")
}

// Notify sends the message to every configured recipient and reports success
// or failure per recipient. A failed recipient never blocks the others.
func (s *Service) Notify(message string) []DeliveryResult {
	results := make([]DeliveryResult, 0, len(s.chatIDs))
	for _, chatID := range s.chatIDs {
		err := s.sendMessage(chatID, message)
		if err != nil {
			s.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send Telegram message")
		}
		results = append(results, DeliveryResult{ChatID: chatID, Err: err})
	}
	return results
}

func (s *Service) sendMessage(chatID, message string) error {
	if s.token == "" {
		return errors.New("Telegram bot token is not configured")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %v", err)
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token - please check your token from @BotFather")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		case http.StatusTooManyRequests:
			return errors.New("Telegram rate limit reached")
		default:
			return fmt.Errorf("Telegram API error (status %d): %s", resp.StatusCode, string(body))
		}
	}

	return nil
}

// orUnknown renders an absent field as an explicit placeholder, never
// omitting it silently.
func orUnknown(v string) string {
	if v == "" {
		return "unbekannt"
	}
	return v
}

// FormatListing builds the notification message for a newly found listing.
// ref may be nil when no retail reference price was found.
func FormatListing(l models.ScoredListing, ref *models.ReferencePrice) string {
	var b strings.Builder

	b.WriteString("<b>🔔 Neue DDR5 Anzeige gefunden!</b>\n\n")
	fmt.Fprintf(&b, "<b>%s</b>\n\n", l.Title)
	fmt.Fprintf(&b, "💰 Preis: %.2f €\n", l.Price)
	fmt.Fprintf(&b, "📍 Ort: %s\n", orUnknown(l.Location))
	fmt.Fprintf(&b, "🏷 Hersteller: %s\n", orUnknown(l.Spec.Manufacturer))
	fmt.Fprintf(&b, "🔢 Modell: %s\n", orUnknown(l.Spec.ModelNumber))
	fmt.Fprintf(&b, "💾 Kapazität: %s\n", orUnknown(l.Spec.Capacity))
	fmt.Fprintf(&b, "⚡ Takt: %s\n", orUnknown(l.Spec.Speed))
	fmt.Fprintf(&b, "⏱ Latenz: %s\n", orUnknown(l.Spec.Latency))

	var flags []string
	if l.Spec.HasOVP {
		flags = append(flags, "OVP")
	}
	if l.Spec.HasInvoice {
		flags = append(flags, "Rechnung")
	}
	if l.Spec.ShippingAvailable {
		flags = append(flags, "Versand")
	}
	if l.Spec.DefectMentioned {
		flags = append(flags, "⚠️ Defekt erwähnt")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, "✅ %s\n", strings.Join(flags, ", "))
	}

	fmt.Fprintf(&b, "⭐ Score: %d/%d\n", l.PriorityScore, scorer.MaxScore)

	if ref != nil && ref.Price > 0 {
		fmt.Fprintf(&b, "🏪 Neupreis: %.2f € (%s)\n", ref.Price, ref.Model)
	}

	fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">Zur Anzeige</a>", l.URL)

	return b.String()
}

// FormatDigest builds the periodic stats summary message.
func FormatDigest(stats models.StoreStats) string {
	var b strings.Builder

	b.WriteString("<b>📊 ramwatch Tagesübersicht</b>\n\n")
	fmt.Fprintf(&b, "Gesamt erfasst: %d\n", stats.Total)
	fmt.Fprintf(&b, "Heute neu: %d\n", stats.Today)

	if len(stats.Manufacturers) > 0 {
		b.WriteString("\nHersteller:\n")
		names := make([]string, 0, len(stats.Manufacturers))
		for name := range stats.Manufacturers {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if stats.Manufacturers[names[i]] != stats.Manufacturers[names[j]] {
				return stats.Manufacturers[names[i]] > stats.Manufacturers[names[j]]
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %d\n", name, stats.Manufacturers[name])
		}
	}

	return b.String()
}
