// Package whatsapp sends templated messages through the Meta Graph API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"filingscout/internal/config"
	"filingscout/internal/ports"
)

// updateMaxLen caps the update parameter to stay under the channel's payload
// limits.
const updateMaxLen = 1000

// Notifier sends template messages via the Graph API messages endpoint.
type Notifier struct {
	token      string
	phoneID    string
	template   string
	apiVersion string
	language   string
	client     *http.Client
	// endpoint overrides the Graph API URL in tests.
	endpoint string
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers the channel credentials and template.
func NewNotifier(cfg config.WhatsAppConfig) *Notifier {
	return &Notifier{
		token:      cfg.Token,
		phoneID:    cfg.PhoneID,
		template:   cfg.Template,
		apiVersion: cfg.APIVersion,
		language:   cfg.Language,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type templateParameter struct {
	Type          string `json:"type"`
	ParameterName string `json:"parameter_name"`
	Text          string `json:"text"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templatePayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Template         struct {
		Name     string `json:"name"`
		Language struct {
			Code string `json:"code"`
		} `json:"language"`
		Components []templateComponent `json:"components"`
	} `json:"template"`
}

// Send posts one template message. The body parameters are positional; the
// channel binds them in the fixed order customer, company, price, update.
func (n *Notifier) Send(ctx context.Context, phone string, msg ports.Notification) error {
	if n.token == "" || n.phoneID == "" || n.template == "" {
		return fmt.Errorf("whatsapp notifier misconfigured")
	}

	body, err := json.Marshal(n.buildPayload(phone, msg))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := n.endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://graph.facebook.com/%s/%s/messages", n.apiVersion, n.phoneID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("whatsapp error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	return nil
}

func (n *Notifier) buildPayload(phone string, msg ports.Notification) templatePayload {
	var p templatePayload
	p.MessagingProduct = "whatsapp"
	p.To = phone
	p.Type = "template"
	p.Template.Name = n.template
	p.Template.Language.Code = n.language
	p.Template.Components = []templateComponent{
		{
			Type: "body",
			Parameters: []templateParameter{
				{Type: "text", ParameterName: "customer", Text: orDefault(msg.Customer, "Customer")},
				{Type: "text", ParameterName: "company", Text: orDefault(msg.Company, "N/A")},
				{Type: "text", ParameterName: "price", Text: orDefault(msg.Price, "N/A")},
				{Type: "text", ParameterName: "update", Text: truncateUpdate(orDefault(msg.Update, "No update available"))},
			},
		},
	}
	return p
}

func orDefault(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func truncateUpdate(v string) string {
	if len(v) <= updateMaxLen {
		return v
	}
	return v[:updateMaxLen-3] + "..."
}
