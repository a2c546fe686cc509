package indexer

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello world", "hello world"},
		{"strips tags", "<p>hello <b>bold</b> world</p>", "hello bold world"},
		{"collapses whitespace", "a\n\n  b\t\tc", "a b c"},
		{"keeps allowed punctuation", "step 1: check disk; done. (really!)", "step 1: check disk; done. (really!)"},
		{"strips disallowed chars", "cost: $100 @ 50%", "cost: 100 50"},
		{"trims", "   padded   ", "padded"},
		{"empty", "", ""},
		{"tags only", "<div><span></span></div>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q)=%q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
