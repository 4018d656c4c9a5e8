package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crewmuster/crewmuster/internal/models"
)

const (
	whatsappBaseURL     = "https://graph.facebook.com/v20.0"
	whatsappSendTimeout = 10 * time.Second
)

// WhatsApp delivers messages through the WhatsApp Cloud API.
type WhatsApp struct {
	phoneNumberID string
	accessToken   string
	connected     bool
	baseURL       string
	client        *http.Client
}

// NewWhatsApp builds the channel from stored settings.
func NewWhatsApp(cfg models.WhatsAppSettings) *WhatsApp {
	return &WhatsApp{
		phoneNumberID: cfg.PhoneNumberID,
		accessToken:   cfg.AccessToken,
		connected:     cfg.Connected && cfg.PhoneNumberID != "" && cfg.AccessToken != "",
		baseURL:       whatsappBaseURL,
		client:        &http.Client{Timeout: whatsappSendTimeout},
	}
}

func (w *WhatsApp) Name() string { return "whatsapp" }

func (w *WhatsApp) Connected() bool { return w.connected }

func (w *WhatsApp) Address(member models.StaffMember) string { return member.Phone }

// ValidateAddress accepts international phone numbers in +<digits> form.
func (w *WhatsApp) ValidateAddress(address string) error {
	if !strings.HasPrefix(address, "+") || len(address) < 8 {
		return fmt.Errorf("invalid phone number %q: %w", address, models.ErrValidation)
	}
	for _, r := range address[1:] {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid phone number %q: %w", address, models.ErrValidation)
		}
	}
	return nil
}

type whatsappPayload struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsappText `json:"text"`
}

type whatsappText struct {
	Body string `json:"body"`
}

func (w *WhatsApp) Send(ctx context.Context, address string, msg Message) error {
	payload := whatsappPayload{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(address, "+"),
		Type:             "text",
		Text:             whatsappText{Body: msg.Text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call whatsapp api: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck
		return fmt.Errorf("whatsapp api returned status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
