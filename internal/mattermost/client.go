// Package mattermost provides webhook client for sending notifications to Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aimd54/congregation/internal/config"
	"github.com/aimd54/congregation/pkg/logger"
)

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		httpClient: http.DefaultClient,
		log:        log,
	}
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback   string  `json:"fallback,omitempty"`
	Color      string  `json:"color,omitempty"`
	Pretext    string  `json:"pretext,omitempty"`
	AuthorName string  `json:"author_name,omitempty"`
	AuthorLink string  `json:"author_link,omitempty"`
	AuthorIcon string  `json:"author_icon,omitempty"`
	Title      string  `json:"title,omitempty"`
	TitleLink  string  `json:"title_link,omitempty"`
	Text       string  `json:"text,omitempty"`
	Fields     []Field `json:"fields,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
	ThumbURL   string  `json:"thumb_url,omitempty"`
	Footer     string  `json:"footer,omitempty"`
	FooterIcon string  `json:"footer_icon,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(ctx context.Context, msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// SendSimpleMessage sends a simple text message.
func (c *Client) SendSimpleMessage(ctx context.Context, text string) error {
	return c.SendMessage(ctx, &Message{
		Text: text,
	})
}

// GameCoordinator is one line of the picnic coordinator summary.
type GameCoordinator struct {
	Game        string
	Coordinator string // empty when nobody registered
	Members     int
}

// CoordinatorSummary is the picnic coordinator digest for a year.
type CoordinatorSummary struct {
	Year               int
	Games              []GameCoordinator
	TotalRegistrations int
	AvailableSlots     int
	TotalSupport       float64
}

// SendCoordinatorSummary posts the picnic coordinator list.
func (c *Client) SendCoordinatorSummary(ctx context.Context, summary CoordinatorSummary) error {
	if summary.TotalRegistrations == 0 {
		c.log.Debug().Int("year", summary.Year).Msg("No picnic registrations, skipping coordinator summary")
		return nil
	}

	text := fmt.Sprintf("### 🧺 Picnic %d Coordinators\n\n", summary.Year)
	text += "| Game | Coordinator | Members |\n|:-----|:------------|--------:|\n"

	for _, g := range summary.Games {
		coordinator := g.Coordinator
		if coordinator == "" {
			coordinator = "_none yet_"
		}
		text += fmt.Sprintf("| %s | %s | %d |\n", g.Game, coordinator, g.Members)
	}

	text += fmt.Sprintf("\n**%d** registered, **%d** slots left, **%.2f** pledged in support.",
		summary.TotalRegistrations, summary.AvailableSlots, summary.TotalSupport)

	return c.SendMessage(ctx, &Message{
		Username: "Congregation Bot",
		Text:     text,
	})
}

// PromotedMember is a first-timer who just became a member.
type PromotedMember struct {
	Name  string
	Email string
}

// SendPromotionDigest announces members promoted by the nightly evaluation.
func (c *Client) SendPromotionDigest(ctx context.Context, promoted []PromotedMember) error {
	if len(promoted) == 0 {
		c.log.Debug().Msg("No promotions, skipping digest")
		return nil
	}

	text := fmt.Sprintf("### 🎉 New Members\n\n**%d** first-timers reached membership:\n\n", len(promoted))
	for _, m := range promoted {
		if m.Email != "" {
			text += fmt.Sprintf("• %s (%s)\n", m.Name, m.Email)
		} else {
			text += fmt.Sprintf("• %s\n", m.Name)
		}
	}
	text += "\n_Please welcome them and plan a follow-up visit._"

	return c.SendMessage(ctx, &Message{
		Username: "Congregation Bot",
		Text:     text,
	})
}
