package llm

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "bare object",
			input: `{"intent": "sender_query", "confidence": 0.9}`,
			want:  `{"intent": "sender_query", "confidence": 0.9}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"intent\": \"thread_summary\"}\n```",
			want:  `{"intent": "thread_summary"}`,
		},
		{
			name:  "plain fence",
			input: "Here you go:\n```\n{\"intent\": \"action_items\"}\n```\nHope that helps.",
			want:  `{"intent": "action_items"}`,
		},
		{
			name:  "prose around object",
			input: `The answer is {"intent": "factual_lookup", "metadata": {}} as requested.`,
			want:  `{"intent": "factual_lookup", "metadata": {}}`,
		},
		{
			name:    "error sentinel",
			input:   "[ERROR] upstream timeout",
			wantErr: ErrLLMSentinel,
		},
		{
			name:    "no object",
			input:   "I am not sure.",
			wantErr: ErrNoJSON,
		},
		{
			name:    "broken object",
			input:   "```json\n{\"intent\": \n```",
			wantErr: ErrNoJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ExtractJSON() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON() unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("ExtractJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}
