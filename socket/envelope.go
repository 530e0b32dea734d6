package socket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// Errors
var (
	ErrConnClosed   = errors.New("connection closed")
	ErrSlowConsumer = errors.New("outbound buffer full")
)

// Envelope is the inbound message frame. Data holds the command
// parameters as a flat JSON object.
type Envelope struct {
	ID   int64           `json:"id"`
	Path string          `json:"path"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Reply is the outbound message frame correlated by the inbound id.
type Reply struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"` // "result" or "error"
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// parseEnvelope decodes and validates an inbound frame.
func parseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Path == "" {
		return nil, errors.New("envelope missing path")
	}
	return &env, nil
}

// flattenData turns the envelope's data object into request parameters.
// Scalar values stringify; arrays become repeated parameters; nested
// objects are rejected, matching the shallow binding contract.
func flattenData(raw json.RawMessage) (url.Values, error) {
	params := url.Values{}
	if len(raw) == 0 {
		return params, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode envelope data: %w", err)
	}

	for key, value := range obj {
		switch v := value.(type) {
		case []any:
			for _, item := range v {
				s, err := stringifyScalar(item)
				if err != nil {
					return nil, fmt.Errorf("data field %s: %w", key, err)
				}
				params.Add(key, s)
			}
		default:
			s, err := stringifyScalar(v)
			if err != nil {
				return nil, fmt.Errorf("data field %s: %w", key, err)
			}
			params.Add(key, s)
		}
	}
	return params, nil
}

func stringifyScalar(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case float64:
		// JSON numbers decode as float64; keep integers clean.
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s)), nil
		}
		return fmt.Sprintf("%g", s), nil
	case bool:
		return fmt.Sprintf("%t", s), nil
	case nil:
		return "", nil
	default:
		return "", errors.New("nested objects are not bindable")
	}
}
