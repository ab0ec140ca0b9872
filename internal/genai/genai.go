// Package genai calls an OpenAI-compatible generation service to invent
// crafted objects and their illustrations. Object generation uses the
// responses endpoint with a JSON schema so the upstream output is
// machine-checkable; images use the image generation endpoint with
// base64 payloads.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/epochforge/epochforge/internal/craft"
	"github.com/epochforge/epochforge/internal/era"
	"github.com/epochforge/epochforge/internal/gameerr"
)

// Config configures the generation client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	ImageModel string
	HTTPClient *http.Client
}

// Client is the HTTP generation client. It satisfies the crafting
// generation interface.
type Client struct {
	cfg Config
}

var _ craft.Generator = (*Client)(nil)

// New builds a generation client with defaults filled in.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-5-mini"
	}
	if strings.TrimSpace(cfg.ImageModel) == "" {
		cfg.ImageModel = "gpt-image-1-mini"
	}
	return &Client{cfg: cfg}, nil
}

// generatedPayload is the schema-constrained document the model returns.
type generatedPayload struct {
	Name                  string  `json:"name"`
	Era                   string  `json:"era"`
	Category              string  `json:"category"`
	IsKeystone            bool    `json:"is_keystone"`
	QualityTier           string  `json:"quality_tier"`
	Cost                  float64 `json:"cost"`
	TimeCrystalCost       float64 `json:"time_crystal_cost"`
	IncomePerSecond       float64 `json:"income_per_second"`
	TimeCrystalGeneration float64 `json:"time_crystal_generation"`
	BuildTimeSec          int     `json:"build_time_sec"`
	OperationDurationSec  int     `json:"operation_duration_sec"`
	RetirePayoutPct       float64 `json:"retire_payout_pct"`
	SellbackPct           float64 `json:"sellback_pct"`
	FootprintW            int     `json:"footprint_w"`
	FootprintH            int     `json:"footprint_h"`
	Size                  float64 `json:"size"`
	FlavorText            string  `json:"flavor_text"`
}

// GenerateObject asks the model to invent the result of combining two
// objects, constrained by a JSON schema bounded to the target era's stat
// ranges.
func (c *Client) GenerateObject(ctx context.Context, req craft.GenerationRequest) (craft.GeneratedObject, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.cfg.Model,
		"input": buildPrompt(req),
		"text": map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   "crafted_object",
				"strict": true,
				"schema": objectSchema(req.StatRanges),
			},
		},
	})
	if err != nil {
		return craft.GeneratedObject{}, fmt.Errorf("marshal generation request: %w", err)
	}

	outputText, err := c.post(ctx, "/v1/responses", body, extractOutputText)
	if err != nil {
		return craft.GeneratedObject{}, err
	}

	var payload generatedPayload
	if err := json.Unmarshal([]byte(outputText), &payload); err != nil {
		return craft.GeneratedObject{}, gameerr.Wrap(gameerr.CodeMalformedUpstreamResponse, "generation output is not valid json", err)
	}
	if strings.TrimSpace(payload.Name) == "" {
		return craft.GeneratedObject{}, gameerr.New(gameerr.CodeMalformedUpstreamResponse, "generation output missing object name")
	}
	return craft.GeneratedObject{
		Name:                  strings.TrimSpace(payload.Name),
		Era:                   payload.Era,
		Category:              payload.Category,
		IsKeystone:            payload.IsKeystone,
		QualityTier:           payload.QualityTier,
		Cost:                  payload.Cost,
		TimeCrystalCost:       payload.TimeCrystalCost,
		IncomePerSecond:       payload.IncomePerSecond,
		TimeCrystalGeneration: payload.TimeCrystalGeneration,
		BuildTimeSec:          payload.BuildTimeSec,
		OperationDurationSec:  payload.OperationDurationSec,
		RetirePayoutPct:       payload.RetirePayoutPct,
		SellbackPct:           payload.SellbackPct,
		FootprintW:            payload.FootprintW,
		FootprintH:            payload.FootprintH,
		Size:                  payload.Size,
		FlavorText:            payload.FlavorText,
	}, nil
}

// GenerateImage renders a small illustration for a named object and
// returns the raw image bytes.
func (c *Client) GenerateImage(ctx context.Context, name string) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"model":  c.cfg.ImageModel,
		"prompt": fmt.Sprintf("A small isometric game sprite of %q on a plain background, painterly style.", name),
		"size":   "256x256",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal image request: %w", err)
	}

	b64, err := c.post(ctx, "/v1/images/generations", body, extractImageB64)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, gameerr.Wrap(gameerr.CodeMalformedUpstreamResponse, "image payload is not valid base64", err)
	}
	return data, nil
}

// post sends one authenticated JSON request and hands the response body
// to an extractor. Transport and status failures map to the upstream
// failure code, extraction failures to the malformed response code.
func (c *Client) post(ctx context.Context, path string, body []byte, extract func([]byte) (string, error)) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Credential material travels only in the Authorization header and is
	// never echoed into errors.
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", gameerr.Wrap(gameerr.CodeUpstreamGenerationFailed, "generation request failed", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", gameerr.Newf(gameerr.CodeUpstreamGenerationFailed, "generation request status %d: %s", res.StatusCode, strings.TrimSpace(string(snippet)))
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<22))
	if err != nil {
		return "", gameerr.Wrap(gameerr.CodeUpstreamGenerationFailed, "read generation response", err)
	}
	return extract(raw)
}

// extractOutputText pulls the text document out of a responses payload,
// checking the flattened field first and the content blocks second.
func extractOutputText(raw []byte) (string, error) {
	var payload struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", gameerr.Wrap(gameerr.CodeMalformedUpstreamResponse, "decode generation response", err)
	}
	text := strings.TrimSpace(payload.OutputText)
	if text == "" {
		for _, item := range payload.Output {
			for _, content := range item.Content {
				if strings.TrimSpace(content.Text) != "" {
					text = strings.TrimSpace(content.Text)
					break
				}
			}
			if text != "" {
				break
			}
		}
	}
	if text == "" {
		return "", gameerr.New(gameerr.CodeMalformedUpstreamResponse, "generation response missing output text")
	}
	return text, nil
}

func extractImageB64(raw []byte) (string, error) {
	var payload struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", gameerr.Wrap(gameerr.CodeMalformedUpstreamResponse, "decode image response", err)
	}
	if len(payload.Data) == 0 || strings.TrimSpace(payload.Data[0].B64JSON) == "" {
		return "", gameerr.New(gameerr.CodeMalformedUpstreamResponse, "image response missing payload")
	}
	return payload.Data[0].B64JSON, nil
}

// buildPrompt renders the crafting context into the model input.
func buildPrompt(req craft.GenerationRequest) string {
	var b strings.Builder
	b.WriteString("You are the object designer of an incremental crafting game. ")
	b.WriteString("Combine the two input objects into one new object that fits the game world.\n\n")
	writeCapsule(&b, "Input A", req.ObjectA)
	writeCapsule(&b, "Input B", req.ObjectB)
	fmt.Fprintf(&b, "Player's current era: %s\n", req.CurrentEra)
	if len(req.UnlockedEras) > 0 {
		fmt.Fprintf(&b, "Eras already unlocked: %s\n", strings.Join(req.UnlockedEras, ", "))
	}
	if req.NextEraHint != "" {
		fmt.Fprintf(&b, "The era after the inputs' era is: %s\n", req.NextEraHint)
	}
	if len(req.Overrides) > 0 {
		overrides, err := json.Marshal(req.Overrides)
		if err == nil {
			fmt.Fprintf(&b, "\nThis combination is canon. The result MUST use these field values exactly:\n%s\n", overrides)
		}
	}
	b.WriteString("\nRespond with a single object matching the provided schema. ")
	b.WriteString("Keep the name short and evocative, and the flavor text to one sentence.")
	return b.String()
}

func writeCapsule(b *strings.Builder, label string, capsule craft.Capsule) {
	fmt.Fprintf(b, "%s: %s (era: %s, category: %s, tier: %s, cost: %g, income/s: %g)\n",
		label, capsule.Name, capsule.Era, capsule.Category, capsule.QualityTier, capsule.Cost, capsule.IncomePerSecond)
	if capsule.FlavorText != "" {
		fmt.Fprintf(b, "  %s\n", capsule.FlavorText)
	}
}

// objectSchema declares the strict output schema, with numeric bounds
// taken from the target era's stat ranges.
func objectSchema(ranges era.StatRanges) map[string]any {
	number := func(r era.Range) map[string]any {
		prop := map[string]any{"type": "number"}
		if r.Min != 0 || r.Max != 0 {
			prop["minimum"] = r.Min
			prop["maximum"] = r.Max
		}
		return prop
	}
	integer := func(r era.Range) map[string]any {
		prop := map[string]any{"type": "integer"}
		if r.Min != 0 || r.Max != 0 {
			prop["minimum"] = int(r.Min)
			prop["maximum"] = int(r.Max)
		}
		return prop
	}
	footprint := map[string]any{"type": "integer"}
	if ranges.FootprintMin != 0 || ranges.FootprintMax != 0 {
		footprint["minimum"] = ranges.FootprintMin
		footprint["maximum"] = ranges.FootprintMax
	}
	size := map[string]any{"type": "number"}
	if ranges.SizeMin != 0 || ranges.SizeMax != 0 {
		size["minimum"] = ranges.SizeMin
		size["maximum"] = ranges.SizeMax
	}

	properties := map[string]any{
		"name":                    map[string]any{"type": "string"},
		"era":                     map[string]any{"type": "string"},
		"category":                map[string]any{"type": "string"},
		"is_keystone":             map[string]any{"type": "boolean"},
		"quality_tier":            map[string]any{"type": "string", "enum": []string{"common", "uncommon", "rare", "epic"}},
		"cost":                    number(ranges.Cost),
		"time_crystal_cost":       number(ranges.TimeCrystalCost),
		"income_per_second":       number(ranges.IncomePerSecond),
		"time_crystal_generation": number(ranges.TimeCrystalGeneration),
		"build_time_sec":          integer(ranges.BuildTimeSec),
		"operation_duration_sec":  integer(ranges.OperationDurationSec),
		"retire_payout_pct":       number(ranges.RetirePayoutPct),
		"sellback_pct":            number(ranges.SellbackPct),
		"footprint_w":             footprint,
		"footprint_h":             footprint,
		"size":                    size,
		"flavor_text":             map[string]any{"type": "string"},
	}
	required := make([]string, 0, len(properties))
	for key := range properties {
		required = append(required, key)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}
