// Package gemini asks a Gemini model to read a product page when no selector
// adapter could. It is only consulted after a site adapter reports a parse failure.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
)

const (
	DefaultModel   = "gemini-1.5-flash"
	maxPromptChars = 20000
)

const prompt = `Extract the product offer from this retail page text.
Reply with a single JSON object: {"title": string, "price": number, "currency": ISO 4217 code, "availability": "in_stock" | "out_of_stock" | "limited"}.
Use the price the customer pays now, not the list price. Use null for price when the page shows none.

URL: %s
Page title: %s

%s`

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Extractor wraps a Gemini client configured for JSON replies
type Extractor struct {
	client *genai.Client
	model  generator
}

type reply struct {
	Title        string          `json:"title"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Availability string          `json:"availability"`
}

func NewExtractor(ctx context.Context, apiKey, modelName string) (*Extractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0)
	return &Extractor{client: client, model: model}, nil
}

func (e *Extractor) Extract(ctx context.Context, page *base.Page) (*models.Sample, error) {
	text := strings.Join(strings.Fields(page.Doc.Find("body").Text()), " ")
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}
	title := strings.TrimSpace(page.Doc.Find("title").First().Text())

	resp, err := e.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(prompt, page.URL, title, text)))
	if err != nil {
		return nil, base.Fail(page.URL, base.KindOf(ctx, err), fmt.Errorf("gemini: %w", err))
	}

	raw, err := firstText(resp)
	if err != nil {
		return nil, base.Fail(page.URL, base.ErrParse, err)
	}

	var r reply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, base.Fail(page.URL, base.ErrParse, fmt.Errorf("gemini reply: %w", err))
	}

	listing := base.Listing{
		Website:      page.Host,
		Title:        r.Title,
		Availability: models.Availability(r.Availability),
		Image:        page.Meta("og:image"),
	}
	if !listing.Availability.Valid() {
		listing.Availability = ""
	}
	if !r.Price.IsZero() {
		listing.PriceText = r.Currency + " " + r.Price.StringFixed(2)
	}
	return page.Sample(listing)
}

func (e *Extractor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content generated")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			return strings.TrimSpace(string(t)), nil
		}
	}
	return "", fmt.Errorf("unexpected response format (no text part)")
}
