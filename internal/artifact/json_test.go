package artifact

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"summary":"a"}`, "a"},
		{"json fence", "```json\n{\"summary\":\"b\"}\n```", "b"},
		{"bare fence", "```\n{\"summary\":\"c\"}\n```", "c"},
		{"prose around", "Sure! {\"summary\":\"d\"} Let me know.", "d"},
		{"fence with trailing prose", "Result:\n```json\n{\"summary\":\"e\"}\n```\nDone.", "e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Summary string `json:"summary"`
			}
			require.NoError(t, ExtractJSON(tt.in, &out))
			assert.Equal(t, tt.want, out.Summary)
		})
	}
}

func TestExtractJSON_Failures(t *testing.T) {
	var out map[string]interface{}

	err := ExtractJSON("no json here", &out)
	assert.True(t, errors.Is(err, ErrNoJSON))

	err = ExtractJSON("{broken", &out)
	assert.True(t, errors.Is(err, ErrNoJSON))

	err = ExtractJSON("x {not: valid} y", &out)
	assert.Error(t, err)
}
