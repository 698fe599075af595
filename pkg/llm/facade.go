package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"airport-capacity-be/internal/pkg/logger"
)

// Facade is the single place allowed to speak to the model provider. All
// understanding components go through it so deadlines, JSON extraction, and
// error mapping stay uniform.
type Facade struct {
	provider LLMProvider
	timeout  time.Duration
	logger   logger.ILogger
}

// NewFacade wraps a provider with the pipeline's default deadline.
func NewFacade(provider LLMProvider, timeout time.Duration, log logger.ILogger) *Facade {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Facade{provider: provider, timeout: timeout, logger: log}
}

// IntentResult is the classifier-facing response shape.
type IntentResult struct {
	Intent     string  `json:"intent"`
	SubType    string  `json:"sub_type,omitempty"`
	Confidence float64 `json:"confidence"`
}

// EntityValue is one extracted entity with model confidence.
type EntityValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ExtractRequest scopes an entity-extraction call to what the parser still
// needs.
type ExtractRequest struct {
	Intent         string
	TargetTypes    []string
	Existing       map[string]string
	SessionContext map[string]any
}

// ResponseResult is a free-form answer with optional follow-up actions.
type ResponseResult struct {
	Text             string   `json:"text"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
}

// ContentRequest asks the model to fill missing template fields.
type ContentRequest struct {
	Template      string
	MissingFields []string
	Entities      map[string]string
	Data          any
}

// ClassifyIntent asks the model for a single intent label with confidence.
func (f *Facade) ClassifyIntent(ctx context.Context, text string, sessionContext map[string]any) (*IntentResult, error) {
	prompt := f.buildClassifyPrompt(text, sessionContext)

	raw, err := f.generate(ctx, prompt, f.timeout)
	if err != nil {
		return nil, err
	}

	var result IntentResult
	if err := decodeJSON(raw, &result); err != nil {
		return nil, err
	}
	result.Intent = strings.ToLower(strings.TrimSpace(result.Intent))
	if result.Intent == "" {
		return nil, parseErr(fmt.Errorf("empty intent in response"))
	}
	result.Confidence = clamp01(result.Confidence)
	return &result, nil
}

// ExtractEntities asks the model for the target entity types only. A
// non-positive timeout falls back to the facade default.
func (f *Facade) ExtractEntities(ctx context.Context, text string, req ExtractRequest, timeout time.Duration) (map[string]EntityValue, error) {
	if timeout <= 0 {
		timeout = f.timeout
	}
	prompt := f.buildExtractPrompt(text, req)

	raw, err := f.generate(ctx, prompt, timeout)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Entities map[string]EntityValue `json:"entities"`
	}
	if err := decodeJSON(raw, &payload); err != nil {
		return nil, err
	}
	for k, v := range payload.Entities {
		v.Confidence = clamp01(v.Confidence)
		payload.Entities[k] = v
	}
	return payload.Entities, nil
}

// ProcessQuery is the free-form escape hatch. The raw text comes back as-is.
func (f *Facade) ProcessQuery(ctx context.Context, prompt string) (string, error) {
	return f.generate(ctx, prompt, f.timeout)
}

// GenerateResponse produces a user-facing answer for an already-understood
// query plus whatever data the host resolved for it.
func (f *Facade) GenerateResponse(ctx context.Context, query, intent string, data any) (*ResponseResult, error) {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("You are an airport capacity planning assistant. Answer the user's question using ONLY the provided data.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(query)
	prompt.WriteString("\n</user_query>\n\n")
	prompt.WriteString(fmt.Sprintf("<intent>%s</intent>\n\n", intent))
	if data != nil {
		blob, _ := json.Marshal(data)
		prompt.WriteString("<data>\n")
		prompt.Write(blob)
		prompt.WriteString("\n</data>\n\n")
	}
	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON: {\"text\": \"...\", \"suggested_actions\": [\"...\"]}\n")
	prompt.WriteString("</output_format>")

	raw, err := f.generate(ctx, prompt.String(), f.timeout)
	if err != nil {
		return nil, err
	}

	var result ResponseResult
	if err := decodeJSON(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GenerateContent fills the missing fields of a visualization/response
// template from the extracted entities and resolved data.
func (f *Facade) GenerateContent(ctx context.Context, req ContentRequest) (map[string]string, error) {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("You fill in missing fields for an airport planning response template.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<template>\n")
	prompt.WriteString(req.Template)
	prompt.WriteString("\n</template>\n\n")
	if len(req.Entities) > 0 {
		prompt.WriteString("<entities>\n")
		for k, v := range req.Entities {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", k, v))
		}
		prompt.WriteString("</entities>\n\n")
	}
	if req.Data != nil {
		blob, _ := json.Marshal(req.Data)
		prompt.WriteString("<data>\n")
		prompt.Write(blob)
		prompt.WriteString("\n</data>\n\n")
	}
	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON: {\"fields\": {")
	for i, field := range req.MissingFields {
		if i > 0 {
			prompt.WriteString(", ")
		}
		prompt.WriteString(fmt.Sprintf("\"%s\": \"...\"", field))
	}
	prompt.WriteString("}}\n")
	prompt.WriteString("</output_format>")

	raw, err := f.generate(ctx, prompt.String(), f.timeout)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Fields map[string]string `json:"fields"`
	}
	if err := decodeJSON(raw, &payload); err != nil {
		return nil, err
	}
	return payload.Fields, nil
}

func (f *Facade) buildClassifyPrompt(text string, sessionContext map[string]any) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are an intent analyzer for an airport capacity planning assistant.\n")
	prompt.WriteString("Your ONLY job is to classify what the user wants. You do NOT answer questions.\n")
	prompt.WriteString("</system>\n\n")

	if len(sessionContext) > 0 {
		prompt.WriteString("<session_state>\n")
		if v, ok := sessionContext["lastIntent"]; ok {
			prompt.WriteString(fmt.Sprintf("PREVIOUS_INTENT: %v\n", v))
		}
		if v, ok := sessionContext["lastTerminal"]; ok {
			prompt.WriteString(fmt.Sprintf("LAST_TERMINAL: %v\n", v))
		}
		if v, ok := sessionContext["lastStand"]; ok {
			prompt.WriteString(fmt.Sprintf("LAST_STAND: %v\n", v))
		}
		prompt.WriteString("</session_state>\n\n")
	}

	prompt.WriteString("<user_query>\n")
	prompt.WriteString(text)
	prompt.WriteString("\n</user_query>\n\n")

	prompt.WriteString("<intent_definitions>\n")
	prompt.WriteString("Choose ONE intent that best matches:\n\n")
	prompt.WriteString("capacity_query: Questions about throughput, utilization, or capacity of terminals, piers, or stands\n")
	prompt.WriteString("maintenance_query: Questions about maintenance schedules, requests, or impact of maintenance\n")
	prompt.WriteString("infrastructure_query: Questions about the airport layout: terminals, piers, stands themselves\n")
	prompt.WriteString("stand_status_query: Questions about the current status or availability of a specific stand\n")
	prompt.WriteString("scenario_query: What-if questions about hypothetical changes\n")
	prompt.WriteString("comparison_query: Questions comparing two or more terminals, stands, or time periods\n")
	prompt.WriteString("unknown: Only when the query is unrelated to airport planning\n")
	prompt.WriteString("</intent_definitions>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\"intent\": \"capacity_query\", \"sub_type\": \"\", \"confidence\": 0.95}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

func (f *Facade) buildExtractPrompt(text string, req ExtractRequest) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You extract airport entities from user queries. Extract ONLY the requested types.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<user_query>\n")
	prompt.WriteString(text)
	prompt.WriteString("\n</user_query>\n\n")

	if req.Intent != "" {
		prompt.WriteString(fmt.Sprintf("<intent>%s</intent>\n\n", req.Intent))
	}

	prompt.WriteString("<target_types>\n")
	prompt.WriteString(strings.Join(req.TargetTypes, ", "))
	prompt.WriteString("\n</target_types>\n\n")

	if len(req.Existing) > 0 {
		prompt.WriteString("<already_extracted>\n")
		for k, v := range req.Existing {
			prompt.WriteString(fmt.Sprintf("%s: %s (do NOT re-extract)\n", k, v))
		}
		prompt.WriteString("</already_extracted>\n\n")
	}

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\"entities\": {\"terminal\": {\"value\": \"Terminal 1\", \"confidence\": 0.9}}}\n")
	prompt.WriteString("Omit types that are not present in the query.\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

// generate runs one provider call under a deadline with temperature 0 so the
// pipeline stays as deterministic as the model allows.
func (f *Facade) generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := f.provider.Generate(callCtx, prompt, WithTemperature(0.0))
	if err != nil {
		wrapped := wrapProviderErr(err)
		f.logger.Warn("LLMFacade", "Provider call failed", map[string]interface{}{"error": err.Error()})
		return "", wrapped
	}
	return response, nil
}

func decodeJSON(raw string, out any) error {
	jsonContent := ExtractJSON(raw)
	if jsonContent == "" {
		return parseErr(fmt.Errorf("no JSON found in response"))
	}
	if err := json.Unmarshal([]byte(jsonContent), out); err != nil {
		return parseErr(err)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v != v { // NaN guard
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
