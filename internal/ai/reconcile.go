package ai

import (
	"math"
	"strings"
)

// QuoteTolerance is the distance (in characters) between a proposed start
// index and the matched quote position beyond which the match is still
// accepted but reported as suspicious. The quote is ground truth; the
// model's raw offsets are not.
const QuoteTolerance = 300

// ProposedSpan is a model-claimed character range, with an optional literal
// quote from the answer text. Indices are pointers because the model may
// omit them entirely.
type ProposedSpan struct {
	StartIndex *float64
	EndIndex   *float64
	Quote      string
}

// Span is a validated character range into the answer text:
// 0 <= Start < End <= len(text).
type Span struct {
	Start int
	End   int
}

// ReconcileSpan converts a model-proposed span into indices guaranteed to
// address a real substring of answerText. Models count tokens or words
// inconsistently, so numeric offsets are only trusted after clamping, and a
// found quote always overrides them.
//
// Returns ok=false when no valid span remains (the caller drops the
// annotation). farFromProposed reports a quote match further than
// QuoteTolerance from the proposed start; the match is still used.
func ReconcileSpan(answerText string, proposed ProposedSpan) (span Span, farFromProposed bool, ok bool) {
	n := len(answerText)
	start := clampIndex(proposed.StartIndex, n)
	end := clampIndex(proposed.EndIndex, n)

	if proposed.Quote != "" {
		if matchStart, found := findBestQuoteIndex(answerText, proposed.Quote, proposed.StartIndex); found {
			if dist := abs(matchStart - start); dist > QuoteTolerance {
				farFromProposed = true
			}
			start = matchStart
			end = matchStart + len(proposed.Quote)
			if end > n {
				end = n
			}
		}
	}

	if end <= start {
		return Span{}, farFromProposed, false
	}
	return Span{Start: start, End: end}, farFromProposed, true
}

// findBestQuoteIndex scans answerText for every literal occurrence of quote
// and returns the occurrence whose start is numerically closest to the
// suggested start. The first occurrence wins ties; with no usable
// suggestion the first occurrence is returned.
func findBestQuoteIndex(text, quote string, suggestedStart *float64) (int, bool) {
	if quote == "" || text == "" {
		return 0, false
	}

	var indices []int
	for from := 0; ; {
		idx := strings.Index(text[from:], quote)
		if idx < 0 {
			break
		}
		indices = append(indices, from+idx)
		from += idx + 1
	}
	if len(indices) == 0 {
		return 0, false
	}

	if suggestedStart == nil || !isFinite(*suggestedStart) {
		return indices[0], true
	}

	suggested := int(*suggestedStart)
	best := indices[0]
	bestDist := abs(indices[0] - suggested)
	for _, idx := range indices[1:] {
		if d := abs(idx - suggested); d < bestDist {
			best = idx
			bestDist = d
		}
	}
	return best, true
}

// clampIndex coerces an optional, possibly non-finite index into [0, n].
// Missing and non-finite values default to 0.
func clampIndex(v *float64, n int) int {
	if v == nil || !isFinite(*v) {
		return 0
	}
	idx := int(*v)
	if idx < 0 {
		return 0
	}
	if idx > n {
		return n
	}
	return idx
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
