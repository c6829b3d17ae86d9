package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/code-shreya/subscription-manager/internal/model"
)

// Config configures the extraction oracle client.
type Config struct {
	Provider    string // "anthropic" or "scripted"
	APIKey      string
	Model       string
	ScriptPath  string // fixture file for the scripted provider
	Temperature float64
	MaxTokens   int
}

const extractionSystemPrompt = `You are a subscription detection assistant. Given the text of one email,
decide whether it concerns a paid subscription and extract the structured
fields. Respond with ONLY a JSON object, no markdown, no commentary.`

// anthropicExtractor implements Extractor against the Anthropic messages API.
type anthropicExtractor struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

func newAnthropicExtractor(cfg Config) (Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-20241022"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 300
	}

	return &anthropicExtractor{
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Extract sends one email to the model and parses the structured result.
func (c *anthropicExtractor) Extract(ctx context.Context, email model.EmailMessage) (*Extraction, error) {
	requestBody := map[string]any{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"system":      extractionSystemPrompt,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": buildPrompt(email),
			},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.anthropic.com/v1/messages", strings.NewReader(string(jsonBody)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Content) == 0 {
		return nil, fmt.Errorf("no content in response")
	}

	return parseExtraction(response.Content[0].Text)
}

func buildPrompt(email model.EmailMessage) string {
	var sb strings.Builder
	sb.WriteString("From: ")
	sb.WriteString(email.From)
	sb.WriteString("\nSubject: ")
	sb.WriteString(email.Subject)
	sb.WriteString("\nDate: ")
	sb.WriteString(email.Date.Format("2006-01-02"))
	sb.WriteString("\n\n")
	sb.WriteString(email.Body)
	sb.WriteString("\n\nRespond with JSON: {\"is_subscription\": bool, \"is_confirmation_email\": bool, " +
		"\"email_type\": \"confirmed_subscription|one_time_payment|failed_payment|other\", " +
		"\"service_name\": string, \"amount\": number or null, \"currency\": string, " +
		"\"billing_cycle\": \"daily|weekly|monthly|quarterly|yearly|one-time|unknown\", " +
		"\"category\": string, \"confidence\": number 0-100, \"description\": string}")
	return sb.String()
}

// parseExtraction maps the model's JSON onto the typed result. A null or
// absent amount stays null rather than becoming zero.
func parseExtraction(content string) (*Extraction, error) {
	var jsonResp struct {
		EmailType           string   `json:"email_type"`
		ServiceName         string   `json:"service_name"`
		Currency            string   `json:"currency"`
		BillingCycle        string   `json:"billing_cycle"`
		Category            string   `json:"category"`
		Description         string   `json:"description"`
		Amount              *float64 `json:"amount"`
		Confidence          float64  `json:"confidence"`
		IsSubscription      bool     `json:"is_subscription"`
		IsConfirmationEmail bool     `json:"is_confirmation_email"`
	}

	content = cleanMarkdownWrapper(content)
	if err := json.Unmarshal([]byte(content), &jsonResp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	extraction := &Extraction{
		EmailType:           EmailType(jsonResp.EmailType),
		ServiceName:         jsonResp.ServiceName,
		Currency:            jsonResp.Currency,
		BillingCycle:        model.BillingCycle(jsonResp.BillingCycle),
		Category:            jsonResp.Category,
		Description:         jsonResp.Description,
		Confidence:          jsonResp.Confidence,
		IsSubscription:      jsonResp.IsSubscription,
		IsConfirmationEmail: jsonResp.IsConfirmationEmail,
	}
	if jsonResp.Amount != nil {
		extraction.Amount = decimal.NullDecimal{
			Decimal: decimal.NewFromFloat(*jsonResp.Amount),
			Valid:   true,
		}
	}
	if extraction.IsSubscription && extraction.ServiceName == "" {
		return nil, fmt.Errorf("no service name in subscription extraction")
	}
	return extraction, nil
}

// cleanMarkdownWrapper strips a ```json fence if the model added one.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// anthropicResponse represents the Anthropic API response structure.
type anthropicResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
