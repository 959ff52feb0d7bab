package http

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the uniform wrapper returned for every successful call.
// Its fields are taken from the transport response without modification.
type Envelope[T any] struct {
	Body       T
	StatusCode int
	StatusText string
	Headers    map[string][]string

	// Raw is the undecoded body, kept for captures and schema checks.
	Raw      []byte
	Duration time.Duration
}

func (e *Envelope[T]) Header(key string) string {
	return headerValue(e.Headers, key)
}

func newEnvelope[T any](resp *Response) (*Envelope[T], error) {
	env := &Envelope[T]{
		StatusCode: resp.StatusCode,
		StatusText: resp.StatusText,
		Headers:    resp.Headers,
		Raw:        resp.Body,
		Duration:   resp.Duration,
	}
	if err := decodeBody(resp.Body, &env.Body); err != nil {
		return nil, err
	}
	return env, nil
}

// decodeBody fills out from raw. Empty bodies leave out at its zero value.
func decodeBody(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	switch v := out.(type) {
	case *[]byte:
		*v = raw
		return nil
	case *json.RawMessage:
		*v = raw
		return nil
	case *string:
		*v = string(raw)
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response body into %T: %w", out, err)
	}
	return nil
}
