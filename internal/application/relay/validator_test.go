package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarker(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{"string", `{"marker": "hello"}`, "hello", nil},
		{"integer", `{"marker": 42}`, "42", nil},
		{"float_literal_kept", `{"marker": 4.50}`, "4.50", nil},
		{"bool", `{"marker": true}`, "true", nil},
		{"null", `{"marker": null}`, "null", nil},
		{"array_compacted", `{"marker": [1, "a"]}`, `[1,"a"]`, nil},
		{"object_compacted", `{"marker": {"k": 1}}`, `{"k":1}`, nil},
		{"unicode", `{"marker": "été"}`, "été", nil},
		{"extra_fields_ignored", `{"marker": "x", "other": 1}`, "x", nil},
		{"missing_field", `{}`, "", ErrMissingMarker},
		{"wrong_case", `{"Marker": "x"}`, "", ErrMissingMarker},
		{"empty", ``, "", ErrEmptyBody},
		{"blank", "  \n", "", ErrEmptyBody},
		{"not_json", `marker=hello`, "", ErrInvalidBody},
		{"array_body", `["hello"]`, "", ErrInvalidBody},
		{"null_body", `null`, "", ErrInvalidBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMarker([]byte(tt.body))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.NotEmpty(t, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
