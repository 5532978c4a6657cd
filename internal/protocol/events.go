package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/greenops/inference-energy/internal/dataset"
)

// InferenceEvent is the Kafka message format for one inference measurement.
// Field names mirror the CSV column names so the two ingest paths stay
// interchangeable.
type InferenceEvent struct {
	CreatedAt      string             `json:"created_at"`
	ModelName      string             `json:"model_name"`
	Device         string             `json:"device,omitempty"`
	TotalDuration  float64            `json:"total_duration"`
	MeasuredEnergy string             `json:"energy_consumption_llm_total,omitempty"`
	ResponseTokens *float64           `json:"response_token_length,omitempty"`
	PromptTokens   *float64           `json:"prompt_token_length,omitempty"`
	Complexity     map[string]float64 `json:"complexity,omitempty"`
}

// DecodeInferenceEvent parses an event payload.
func DecodeInferenceEvent(data []byte) (*InferenceEvent, error) {
	var event InferenceEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode inference event: %w", err)
	}
	return &event, nil
}

// Encode serializes the event for publishing.
func (e *InferenceEvent) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inference event: %w", err)
	}
	return data, nil
}

// Parse validates required fields and converts the event into a raw
// observation ready for storage. created_at must be RFC3339 on the ingest
// path; malformed events are skipped by the batch writer.
func (e *InferenceEvent) Parse() (dataset.Raw, error) {
	if e.ModelName == "" {
		return dataset.Raw{}, fmt.Errorf("missing model_name")
	}
	if _, err := time.Parse(time.RFC3339, e.CreatedAt); err != nil {
		return dataset.Raw{}, fmt.Errorf("invalid created_at %q: %w", e.CreatedAt, err)
	}
	if e.TotalDuration < 0 {
		return dataset.Raw{}, fmt.Errorf("negative total_duration %f", e.TotalDuration)
	}

	raw := dataset.Raw{
		CreatedAt:      e.CreatedAt,
		ModelName:      e.ModelName,
		TotalDuration:  e.TotalDuration,
		MeasuredEnergy: e.MeasuredEnergy,
		ResponseTokens: e.ResponseTokens,
		PromptTokens:   e.PromptTokens,
		Complexity:     e.Complexity,
	}
	if e.Device != "" {
		device := e.Device
		raw.Device = &device
	}
	return raw, nil
}
