package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/pkg/metrics"
)

const (
	defaultAPIVersion = "v19.0"
	defaultBaseURL    = "https://graph.facebook.com"

	// templatePageSize is the catalog page size; pages are fetched with a
	// fixed pause in between to stay under the provider's burst limits.
	templatePageSize   = 100
	templatePageDelay  = 300 * time.Millisecond
	defaultHTTPTimeout = 30 * time.Second
)

// ErrTemplateNotFound is returned when a named template does not exist in
// the provider catalog.
var ErrTemplateNotFound = fmt.Errorf("template not found")

// APIError is the provider's structured error body.
type APIError struct {
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error %d: %s", e.Code, e.Message)
}

// Credentials is the per-tenant credential set the client operates with.
type Credentials struct {
	AccessToken       string
	PhoneNumberID     string
	BusinessAccountID string
}

// ClientConfig tunes the shared client behaviour.
type ClientConfig struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	// RequestsPerSecond caps outbound Graph API calls across all tenants.
	// Zero disables the limiter.
	RequestsPerSecond float64
}

// Client is a WhatsApp Cloud API client. One instance is shared across
// tenants; credentials are passed per call because every account brings its
// own token and phone number identity.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewClient(cfg ClientConfig, m *metrics.Metrics, logger zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/") + "/" + version,
		limiter:    limiter,
		metrics:    m,
		logger:     logger.With().Str("component", "whatsapp_client").Logger(),
	}
}

// SendResponse is the trimmed provider response for a message send.
type SendResponse struct {
	MessageID string
}

type sendAPIResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type templateMessagePayload struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

type templatePayload struct {
	Name       string             `json:"name"`
	Language   languagePayload    `json:"language"`
	Components []componentPayload `json:"components"`
}

type languagePayload struct {
	Code string `json:"code"`
}

type componentPayload struct {
	Type       string             `json:"type"`
	Parameters []parameterPayload `json:"parameters"`
}

type parameterPayload struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	Image    *mediaPayload `json:"image,omitempty"`
	Video    *mediaPayload `json:"video,omitempty"`
	Document *mediaPayload `json:"document,omitempty"`
}

type mediaPayload struct {
	Link string `json:"link"`
}

type textMessagePayload struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textPayload `json:"text"`
}

type textPayload struct {
	Body string `json:"body"`
}

// TemplateSendRequest carries everything needed to render one template send.
type TemplateSendRequest struct {
	PhoneNumber    string
	TemplateName   string
	LanguageCode   string
	HeaderValue    string
	BodyParameters []string
	Analysis       Analysis
}

// SendTemplateMessage dispatches one template message and returns the
// provider message id, the join key for later webhook reconciliation.
func (c *Client) SendTemplateMessage(ctx context.Context, creds Credentials, req TemplateSendRequest) (*SendResponse, error) {
	language := req.LanguageCode
	if language == "" {
		language = "en_US"
	}

	// Location headers need coordinates the campaign inputs cannot carry.
	// Failing here beats a provider rejection after the quota was claimed
	// and the message row written.
	if req.Analysis.HeaderRequiresParam && req.Analysis.HeaderType == model.HeaderFormatLocation {
		return nil, fmt.Errorf("template %q has a location header, which cannot be sent from stored parameters", req.TemplateName)
	}

	payload := templateMessagePayload{
		MessagingProduct: "whatsapp",
		To:               NormalizePhone(req.PhoneNumber),
		Type:             "template",
		Template: templatePayload{
			Name:       req.TemplateName,
			Language:   languagePayload{Code: language},
			Components: []componentPayload{},
		},
	}

	if req.Analysis.HeaderRequiresParam && req.HeaderValue != "" {
		header := componentPayload{Type: "header"}
		switch req.Analysis.HeaderType {
		case model.HeaderFormatText:
			header.Parameters = append(header.Parameters, parameterPayload{Type: "text", Text: req.HeaderValue})
		case model.HeaderFormatImage:
			if link := ProcessMediaURL(req.HeaderValue); link != "" {
				header.Parameters = append(header.Parameters, parameterPayload{Type: "image", Image: &mediaPayload{Link: link}})
			}
		case model.HeaderFormatVideo:
			if link := ProcessMediaURL(req.HeaderValue); link != "" {
				header.Parameters = append(header.Parameters, parameterPayload{Type: "video", Video: &mediaPayload{Link: link}})
			}
		case model.HeaderFormatDocument:
			if link := ProcessMediaURL(req.HeaderValue); link != "" {
				header.Parameters = append(header.Parameters, parameterPayload{Type: "document", Document: &mediaPayload{Link: link}})
			}
		}
		if len(header.Parameters) > 0 {
			payload.Template.Components = append(payload.Template.Components, header)
		}
	}

	if len(req.Analysis.BodyParameters) > 0 && len(req.BodyParameters) > 0 {
		body := componentPayload{Type: "body"}
		for _, value := range req.BodyParameters {
			body.Parameters = append(body.Parameters, parameterPayload{Type: "text", Text: value})
		}
		payload.Template.Components = append(payload.Template.Components, body)
	}

	var resp sendAPIResponse
	path := fmt.Sprintf("/%s/messages", creds.PhoneNumberID)
	if err := c.do(ctx, creds, http.MethodPost, path, payload, &resp, "send_template"); err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, fmt.Errorf("provider returned no message id")
	}
	return &SendResponse{MessageID: resp.Messages[0].ID}, nil
}

// SendTextMessage dispatches a free-form text message, used for replies
// inside the 24 hour service window.
func (c *Client) SendTextMessage(ctx context.Context, creds Credentials, phoneNumber, text string) (*SendResponse, error) {
	payload := textMessagePayload{
		MessagingProduct: "whatsapp",
		To:               NormalizePhone(phoneNumber),
		Type:             "text",
		Text:             textPayload{Body: text},
	}

	var resp sendAPIResponse
	path := fmt.Sprintf("/%s/messages", creds.PhoneNumberID)
	if err := c.do(ctx, creds, http.MethodPost, path, payload, &resp, "send_text"); err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, fmt.Errorf("provider returned no message id")
	}
	return &SendResponse{MessageID: resp.Messages[0].ID}, nil
}

// TemplateDefinition is one catalog entry as the provider reports it.
type TemplateDefinition struct {
	Name       string                   `json:"name"`
	Language   string                   `json:"language"`
	Status     string                   `json:"status"`
	Category   string                   `json:"category"`
	Components model.TemplateComponents `json:"components"`
}

type templateListResponse struct {
	Data   []TemplateDefinition `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// FetchAllTemplates walks the template catalog following cursor pagination,
// pausing between pages.
func (c *Client) FetchAllTemplates(ctx context.Context, creds Credentials) ([]TemplateDefinition, error) {
	var all []TemplateDefinition
	path := fmt.Sprintf("/%s/message_templates?fields=name,status,language,components,category&limit=%d",
		creds.BusinessAccountID, templatePageSize)

	for path != "" {
		var page templateListResponse
		if err := c.do(ctx, creds, http.MethodGet, path, nil, &page, "list_templates"); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)

		path = ""
		if page.Paging.Next != "" {
			next, err := c.relativePath(page.Paging.Next)
			if err != nil {
				return nil, err
			}
			path = next

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(templatePageDelay):
			}
		}
	}
	return all, nil
}

// FetchTemplateDetails looks up a single template by name. Returns
// ErrTemplateNotFound when the catalog has no exact match.
func (c *Client) FetchTemplateDetails(ctx context.Context, creds Credentials, name string) (*TemplateDefinition, error) {
	path := fmt.Sprintf("/%s/message_templates?fields=name,components,language,status,category&name=%s&limit=1",
		creds.BusinessAccountID, url.QueryEscape(name))

	var page templateListResponse
	if err := c.do(ctx, creds, http.MethodGet, path, nil, &page, "get_template"); err != nil {
		return nil, err
	}
	if len(page.Data) == 0 || page.Data[0].Name != name {
		return nil, ErrTemplateNotFound
	}
	return &page.Data[0], nil
}

// CreateTemplate submits a new template for provider review.
func (c *Client) CreateTemplate(ctx context.Context, creds Credentials, definition map[string]interface{}) error {
	path := fmt.Sprintf("/%s/message_templates", creds.BusinessAccountID)
	return c.do(ctx, creds, http.MethodPost, path, definition, nil, "create_template")
}

// DeleteTemplate removes a template from the provider catalog by name.
func (c *Client) DeleteTemplate(ctx context.Context, creds Credentials, name string) error {
	path := fmt.Sprintf("/%s/message_templates?name=%s", creds.BusinessAccountID, url.QueryEscape(name))
	return c.do(ctx, creds, http.MethodDelete, path, nil, nil, "delete_template")
}

// relativePath strips the provider host from a paging cursor so it can be
// replayed through do.
func (c *Client) relativePath(absolute string) (string, error) {
	u, err := url.Parse(absolute)
	if err != nil {
		return "", fmt.Errorf("failed to parse paging cursor: %w", err)
	}
	path := u.Path
	// Drop the version prefix already baked into baseURL.
	if i := strings.Index(path[1:], "/"); i >= 0 {
		path = path[i+1:]
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path, nil
}

func (c *Client) do(ctx context.Context, creds Credentials, method, path string, body, out interface{}, operation string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.ObserveProviderRequest(operation, statusLabel(resp, err), time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var wrapper struct {
			Error *APIError `json:"error"`
		}
		if err := json.Unmarshal(payload, &wrapper); err == nil && wrapper.Error != nil {
			c.logger.Warn().
				Str("operation", operation).
				Int("status", resp.StatusCode).
				Int("code", wrapper.Error.Code).
				Str("message", wrapper.Error.Message).
				Msg("provider request rejected")
			return wrapper.Error
		}
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func statusLabel(resp *http.Response, err error) string {
	if err != nil {
		return "error"
	}
	if resp.StatusCode >= 400 {
		return "rejected"
	}
	return "ok"
}
