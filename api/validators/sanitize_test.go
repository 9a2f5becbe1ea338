package validators

import "testing"

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"trims whitespace", "  State Final  ", 100, "State Final"},
		{"strips control runes", "Game\x00 Night\t", 100, "Game Night"},
		{"truncates by runes", "ABCDE", 3, "ABC"},
		{"multibyte safe", "日本語のタイトル", 3, "日本語"},
		{"zero max keeps all", "unbounded", 0, "unbounded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeString(tc.input, tc.maxLen); got != tc.want {
				t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.want)
			}
		})
	}
}
