package client

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Shape tells which envelope layout a response used.
type Shape int

const (
	ShapeStandard Shape = iota + 1
	ShapeLegacy
)

func (s Shape) String() string {
	switch s {
	case ShapeStandard:
		return "standard"
	case ShapeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Result is a normalized response envelope.
type Result struct {
	Shape Shape
	// Status is the envelope status of a standard response; zero for legacy.
	Status     int
	Success    bool
	Message    string
	Data       json.RawMessage
	List       json.RawMessage
	TotalCount int
}

type standardEnvelope struct {
	Status     *int            `json:"status"`
	Data       json.RawMessage `json:"data"`
	TotalCount int             `json:"totalCount"`
	Message    string          `json:"message"`
}

type legacyEnvelope struct {
	Success  *bool           `json:"success"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
	DataList json.RawMessage `json:"dataList"`
}

// ParseEnvelope sanitizes body and decodes it as the standard envelope,
// falling back to the legacy one. A body matching neither yields
// ErrProtocol.
func ParseEnvelope(body []byte) (*Result, error) {
	body = sanitizeBody(body)

	var std standardEnvelope
	if err := json.Unmarshal(body, &std); err == nil && std.Status != nil {
		return &Result{
			Shape:      ShapeStandard,
			Status:     *std.Status,
			Success:    *std.Status == 200,
			Message:    std.Message,
			Data:       std.Data,
			TotalCount: std.TotalCount,
		}, nil
	}

	var legacy legacyEnvelope
	if err := json.Unmarshal(body, &legacy); err == nil && legacy.Success != nil {
		return &Result{
			Shape:   ShapeLegacy,
			Success: *legacy.Success,
			Message: legacy.Message,
			Data:    legacy.Data,
			List:    legacy.DataList,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrProtocol, preview(body))
}

var (
	utf8BOM       = []byte{0xEF, 0xBB, 0xBF}
	escapedQuote  = []byte(`\"`)
	plainQuote    = []byte(`"`)
	escapedObject = []byte(`{\"`)
	escapedArray  = []byte(`[{\"`)
)

// sanitizeBody strips artifacts the backend is known to produce: a BOM,
// surrounding whitespace, JSON encoded twice as a string, and bodies whose
// quotes arrive backslash-escaped.
func sanitizeBody(body []byte) []byte {
	body = bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))

	for i := 0; i < 2 && len(body) > 0 && body[0] == '"'; i++ {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			break
		}
		body = bytes.TrimSpace([]byte(inner))
	}

	if bytes.HasPrefix(body, escapedObject) || bytes.HasPrefix(body, escapedArray) {
		body = unescapeOnce(body)
	}
	return body
}

// unescapeOnce removes one level of string escaping, so an escaped quote
// inside a value stays escaped. Bodies that are not a valid escaped
// string only get their quotes unescaped.
func unescapeOnce(body []byte) []byte {
	quoted := make([]byte, 0, len(body)+2)
	quoted = append(quoted, '"')
	quoted = append(quoted, body...)
	quoted = append(quoted, '"')

	var inner string
	if err := json.Unmarshal(quoted, &inner); err != nil {
		return bytes.ReplaceAll(body, escapedQuote, plainQuote)
	}
	return []byte(inner)
}

func preview(b []byte) string {
	const limit = 120
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DecodeList decodes the list payload of r. Legacy responses carry it in
// dataList, standard ones in data. A missing payload is an empty list.
func DecodeList[T any](r *Result) ([]T, error) {
	raw := r.Data
	if !isNull(r.List) {
		raw = r.List
	}
	if isNull(raw) {
		return nil, nil
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode list: %w", ErrProtocol, err)
	}
	return out, nil
}

// DecodeData decodes the single-object payload of r.
func DecodeData[T any](r *Result) (T, error) {
	var out T
	if isNull(r.Data) {
		return out, fmt.Errorf("%w: empty data", ErrProtocol)
	}
	if err := json.Unmarshal(r.Data, &out); err != nil {
		return out, fmt.Errorf("%w: decode data: %w", ErrProtocol, err)
	}
	return out, nil
}
