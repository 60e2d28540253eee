package classify

import (
	"math"
	"strings"
	"unicode"

	pkgdomain "github.com/spwotton/sms/pkg/domain"
	pstrings "github.com/spwotton/sms/pkg/platform/strings"
)

// urgencyWeights scores the safety/emergency vocabulary. Weights accumulate
// per mention and the total is clamped to [0,1].
var urgencyWeights = map[string]float64{
	"emergency":   0.9,
	"911":         0.9,
	"fire":        0.8,
	"police":      0.8,
	"danger":      0.8,
	"hospital":    0.7,
	"accident":    0.7,
	"medical":     0.7,
	"urgent":      0.6,
	"help":        0.6,
	"asap":        0.6,
	"immediately": 0.6,
	"alert":       0.5,
}

// negators damp a keyword mentioned shortly after them, so "no emergency
// here" does not alert.
var negators = map[string]struct{}{
	"no":      {},
	"not":     {},
	"never":   {},
	"without": {},
	"isn't":   {},
	"wasn't":  {},
	"don't":   {},
	"didn't":  {},
}

const (
	negationWindow = 3
	negationFactor = 0.25

	exclamationStep = 0.05
	exclamationMax  = 0.15

	capsBoost      = 0.1
	capsMinLetters = 8
	capsMinRatio   = 0.6

	// Scores above the midpoint read critical; the midpoint itself stays
	// stable. Confidence grows with distance from the midpoint.
	labelMidpoint = 0.5
	maxConfidence = 0.99
)

// heuristicResult is the outcome of the deterministic scan.
type heuristicResult struct {
	label      pkgdomain.Classification
	confidence float64
	score      float64
	matched    []string
}

// scoreText runs the weighted keyword scan plus punctuation and casing
// signals. It is pure and never fails; empty input scores 0.
func scoreText(text string) heuristicResult {
	tokens := tokenize(text)

	var score float64
	var matched []string
	for i, tok := range tokens {
		weight, ok := urgencyWeights[tok]
		if !ok {
			continue
		}
		if negatedAt(tokens, i) {
			weight *= negationFactor
		}
		score += weight
		matched = append(matched, tok)
	}

	score += min(exclamationMax, float64(strings.Count(text, "!"))*exclamationStep)
	score += shoutingBoost(text)
	score = min(1, score)

	label := pkgdomain.ClassificationStable
	if score > labelMidpoint {
		label = pkgdomain.ClassificationCritical
	}

	return heuristicResult{
		label:      label,
		confidence: min(maxConfidence, labelMidpoint+math.Abs(score-labelMidpoint)),
		score:      score,
		matched:    pstrings.DedupeAndTrimLower(matched),
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// negatedAt reports whether a negator appears within the window of tokens
// preceding idx.
func negatedAt(tokens []string, idx int) bool {
	start := max(0, idx-negationWindow)
	for _, tok := range tokens[start:idx] {
		if _, ok := negators[tok]; ok {
			return true
		}
	}
	return false
}

// shoutingBoost adds a small signal for mostly upper-case messages. Short
// texts are exempt so "OK" and "YES" do not count as shouting.
func shoutingBoost(text string) float64 {
	var letters, upper int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters >= capsMinLetters && float64(upper)/float64(letters) >= capsMinRatio {
		return capsBoost
	}
	return 0
}
