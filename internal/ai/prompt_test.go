package ai

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/corrigolabs/corrigo-backend/internal/model"
)

func TestTruncateCountsRunes(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short untouched", "fotosíntesis", 50, "fotosíntesis"},
		{"ascii cut", "abcdef", 3, "abc"},
		{"multibyte cut", "ññññ", 2, "ññ"},
		{"cut at multibyte boundary", strings.Repeat("a", 3999) + "ñón", 4000, strings.Repeat("a", 3999) + "ñ"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := truncate(tc.in, tc.max)
			if got != tc.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestNormalizeModeDefaultsToNeutral(t *testing.T) {
	if got := normalizeMode("AGGRESSIVE"); got != model.GradingModeNeutral {
		t.Errorf("unknown mode normalized to %s, want %s", got, model.GradingModeNeutral)
	}
	if got := normalizeMode(model.GradingModeStrict); got != model.GradingModeStrict {
		t.Errorf("valid mode changed to %s", got)
	}
}
