package log

import "testing"

func TestRedactCardID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"card_8f2a91c4", "****91c4"},
		{"abcd", "****"},
		{"ab", "****"},
		{"", "****"},
	}
	for _, tc := range tests {
		if got := RedactCardID(tc.input); got != tc.want {
			t.Errorf("RedactCardID(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
