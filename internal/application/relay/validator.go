package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MarkerField is the request field holding the marker text
const MarkerField = "marker"

// Validation errors
var (
	ErrEmptyBody     = errors.New("request body is empty")
	ErrInvalidBody   = errors.New("request body is not a JSON object")
	ErrMissingMarker = fmt.Errorf("missing required field %q", MarkerField)
)

// ParseMarker extracts the marker from a JSON body and coerces it to a string.
// Strings are taken verbatim; any other JSON value keeps its compact JSON
// spelling, so 42 becomes "42" and true becomes "true".
func ParseMarker(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", ErrEmptyBody
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	// A literal null body decodes to a nil map
	if fields == nil {
		return "", ErrInvalidBody
	}

	raw, ok := fields[MarkerField]
	if !ok {
		return "", ErrMissingMarker
	}

	return coerce(raw)
}

func coerce(raw json.RawMessage) (string, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		return s, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return buf.String(), nil
}
