package narration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAnswer(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "answer tags",
			response: `Here you go. <answer>{"explanation": "pay the high card"}</answer>`,
			want:     `{"explanation": "pay the high card"}`,
		},
		{
			name:     "json fence",
			response: "```json\n{\"explanation\": \"ok\"}\n```",
			want:     `{"explanation": "ok"}`,
		},
		{
			name:     "answer tags spanning lines",
			response: "<answer>\n{\n  \"explanation\": \"multi\"\n}\n</answer>",
			want:     "{\n  \"explanation\": \"multi\"\n}",
		},
		{
			name:     "uppercase tags",
			response: `<ANSWER>{"a": 1}</ANSWER>`,
			want:     `{"a": 1}`,
		},
		{
			name:     "escaped dollar signs",
			response: `<answer>{"explanation": "saves \$120 and \\$30"}</answer>`,
			want:     `{"explanation": "saves $120 and $30"}`,
		},
		{
			name:     "first block wins",
			response: `<answer>{"a": 1}</answer> trailing <answer>{"b": 2}</answer>`,
			want:     `{"a": 1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractAnswer(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractAnswerMalformed(t *testing.T) {
	_, err := extractAnswer("Sorry, I cannot help with that.")
	assert.ErrorIs(t, err, ErrMalformedAnswer)
}
