package verify

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict_RoundTrip(t *testing.T) {
	cases := []Verdict{
		{IsValid: true, Score: 0.92, Feedback: "Correct and well explained"},
		{IsValid: false, Score: 0, Feedback: "Wrong answer"},
		{IsValid: true, Score: 1, Feedback: `quotes "inside" and {braces}`},
	}
	for _, want := range cases {
		raw, err := json.Marshal(want)
		require.NoError(t, err)
		got, err := ParseVerdict(string(raw))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Verdict
		wantErr bool
	}{
		{
			name: "surrounded by prose",
			raw:  `Sure! {"is_valid": true, "score": 0.7, "feedback": "ok"} thanks`,
			want: Verdict{IsValid: true, Score: 0.7, Feedback: "ok"},
		},
		{
			name: "markdown fence",
			raw:  "```json\n{\"is_valid\": false, \"score\": 0.2, \"feedback\": \"incomplete\"}\n```",
			want: Verdict{IsValid: false, Score: 0.2, Feedback: "incomplete"},
		},
		{
			name: "nested object inside verdict",
			raw:  `Result: {"is_valid": true, "score": 0.9, "feedback": "fine", "details": {"a": 1}} done`,
			want: Verdict{IsValid: true, Score: 0.9, Feedback: "fine"},
		},
		{
			name: "brace in string does not end the object",
			raw:  `x {"is_valid": true, "score": 0.5, "feedback": "use } carefully"} y`,
			want: Verdict{IsValid: true, Score: 0.5, Feedback: "use } carefully"},
		},
		{
			name: "invalid region skipped for the next one",
			raw:  `{not json} then {"is_valid": true, "score": 0.6}`,
			want: Verdict{IsValid: true, Score: 0.6, Feedback: defaultFeedback},
		},
		{
			name: "missing keys take defaults",
			raw:  `{}`,
			want: Verdict{IsValid: false, Score: 0, Feedback: defaultFeedback},
		},
		{
			name: "null values take defaults",
			raw:  `{"is_valid": null, "score": null, "feedback": null}`,
			want: Verdict{Feedback: defaultFeedback},
		},
		{
			name: "string values are coerced",
			raw:  `{"is_valid": "true", "score": "0.75", "feedback": "coerced"}`,
			want: Verdict{IsValid: true, Score: 0.75, Feedback: "coerced"},
		},
		{
			name: "score outside range passes through",
			raw:  `{"is_valid": true, "score": 1.4, "feedback": "generous"}`,
			want: Verdict{IsValid: true, Score: 1.4, Feedback: "generous"},
		},
		{
			name:    "no json at all",
			raw:     "I cannot comply",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			raw:     `{"is_valid": true, "score": 0.9`,
			wantErr: true,
		},
		{
			name:    "top level array",
			raw:     `[1, 2, 3]`,
			wantErr: true,
		},
		{
			name:    "uncoercible score",
			raw:     `{"is_valid": true, "score": "high"}`,
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "   ",
			wantErr: true,
		},
		{
			name:    "nan score",
			raw:     `{"is_valid": true, "score": "NaN", "feedback": "ok"}`,
			wantErr: true,
		},
		{
			name:    "infinite score",
			raw:     `{"is_valid": true, "score": "Inf"}`,
			wantErr: true,
		},
		{
			name:    "negative infinite score",
			raw:     `{"is_valid": false, "score": "-Inf"}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnparsableVerdict)
				var ue *UnparsableVerdictError
				require.True(t, errors.As(err, &ue))
				assert.Equal(t, tt.raw, ue.Raw)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
