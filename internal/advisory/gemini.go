package advisory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured
const DefaultModelName = "gemini-2.5-flash"

const legalPromptTemplate = "You are a Banking Compliance Officer.\n" +
	"Justify your rejection of this client in a short memo citing anti-money-laundering " +
	"and affordability obligations.\n\n" +
	"RISKS FOUND:\n%s\n\n" +
	"DECISION: REJECTED\n" +
	"REASON:"

const wealthPromptTemplate = "You are a Wealth Manager at a retail bank.\n" +
	"Based on the client's profile, recommend suitable financial products.\n\n" +
	"CLIENT PROFILE:\n" +
	"Income: $%s\n" +
	"Risk Profile: %s\n\n" +
	"INSTRUCTIONS:\n" +
	"1. Recommend 2 products that match the client's risk level.\n" +
	"2. Explain WHY you chose them.\n" +
	"3. Be professional but persuasive.\n\n" +
	"Reply in plain text without Markdown or code fences.\n\n" +
	"YOUR RECOMMENDATION:"

// ErrEmptyResponse is returned when the model produces no text
var ErrEmptyResponse = errors.New("empty response from model")

// contentGenerator is the subset of *genai.Models used by GeminiAdvisor
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures a GeminiAdvisor
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Retry       RetryPolicy
}

// GeminiAdvisor implements LegalAdvisor and WealthAdvisor on the Gemini API
type GeminiAdvisor struct {
	models contentGenerator
	model  string
	temp   float32
	retry  RetryPolicy
	logger zerolog.Logger
}

// NewGeminiAdvisor creates a Gemini-backed advisor
func NewGeminiAdvisor(ctx context.Context, cfg GeminiConfig, logger zerolog.Logger) (*GeminiAdvisor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini advisor: api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini advisor: create genai client: %w", err)
	}

	return newGeminiAdvisor(client.Models, cfg, logger), nil
}

func newGeminiAdvisor(models contentGenerator, cfg GeminiConfig, logger zerolog.Logger) *GeminiAdvisor {
	model := cfg.Model
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiAdvisor{
		models: models,
		model:  model,
		temp:   cfg.Temperature,
		retry:  cfg.Retry,
		logger: logger.With().Str("component", "gemini_advisor").Str("model", model).Logger(),
	}
}

// Consult asks the model for a rejection memo covering reasons
func (g *GeminiAdvisor) Consult(ctx context.Context, reasons []string) (string, error) {
	prompt := fmt.Sprintf(legalPromptTemplate, strings.Join(reasons, ", "))
	memo, err := g.generate(ctx, "legal", prompt)
	if err != nil {
		return "", fmt.Errorf("legal opinion: %w", err)
	}
	return memo, nil
}

// Recommend asks the model for products suited to income and profile
func (g *GeminiAdvisor) Recommend(ctx context.Context, income decimal.Decimal, profile string) (string, error) {
	prompt := fmt.Sprintf(wealthPromptTemplate, income.StringFixed(2), profile)
	plan, err := g.generate(ctx, "wealth", prompt)
	if err != nil {
		return "", fmt.Errorf("wealth recommendation: %w", err)
	}
	return plan, nil
}

func (g *GeminiAdvisor) generate(ctx context.Context, stage, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temp),
	}

	attempt := 0
	return Retry(ctx, g.retry, func(ctx context.Context) (string, error) {
		attempt++
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		if err != nil {
			g.logger.Warn().Err(err).Str("stage", stage).Int("attempt", attempt).Msg("generate content failed")
			err = fmt.Errorf("generate content: %w", err)
			if rejectedRequest(err) {
				return "", Permanent(err)
			}
			return "", err
		}

		text := cleanModelText(resp.Text())
		if text == "" {
			g.logger.Warn().Str("stage", stage).Int("attempt", attempt).Msg("model returned no text")
			return "", ErrEmptyResponse
		}
		return text, nil
	})
}

// rejectedRequest reports whether the API refused the request itself.
// Sending it again gets the same answer.
func rejectedRequest(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return rejectedStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return rejectedStatus(apiErrPtr.Code)
	}
	return false
}

func rejectedStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// cleanModelText strips Markdown code fences the model may wrap its reply in
func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the opening fence line (``` or ```text)
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return strings.TrimSpace(strings.Trim(s, "`"))
		}
		s = s[idx+1:]
		if end := strings.LastIndex(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	return strings.TrimSpace(s)
}
