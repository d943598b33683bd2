package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Payload is the JSON envelope the driver exchanges with the host framework.
// Attempts mirrors the redelivery counter header for consumers that only see
// the body.
type Payload struct {
	ID       string          `json:"id"`
	Job      string          `json:"job"`
	Data     json.RawMessage `json:"data"`
	Attempts int             `json:"attempts"`
}

// NewPayload builds the serialized envelope for a job, assigning it a fresh
// unique id.
func NewPayload(job string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("could not marshal job data: %w", err)
	}

	payload := Payload{
		ID:   uuid.NewString(),
		Job:  job,
		Data: raw,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not marshal payload envelope: %w", err)
	}

	return body, nil
}

func parsePayload(body []byte) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Payload{}, fmt.Errorf("could not unmarshal payload envelope: %w", err)
	}

	return payload, nil
}

// Unmarshal parses the data field of the payload and stores the result in the
// value pointed to by target.
func (p Payload) Unmarshal(target any) error {
	if err := json.Unmarshal(p.Data, target); err != nil {
		return fmt.Errorf("could not unmarshal job data into target: %w", err)
	}

	return nil
}

func (p Payload) marshal() ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("could not marshal payload envelope: %w", err)
	}

	return body, nil
}
