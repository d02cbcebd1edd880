package matching

import (
	"strings"
	"unicode"
)

// countryCodePrefixes are dial prefixes stripped before phone comparison.
// Numbers collected in the field mix local, trunk-prefixed, and
// international spellings of the same line.
var countryCodePrefixes = []string{"963", "00963"}

// NormalizePhone reduces a phone number to comparable digits: strip
// everything non-numeric, drop a recognized country-code prefix, then drop
// the local trunk zero. "+963 944 123456", "0944123456" and "944123456"
// all normalize to "944123456".
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	for _, cc := range countryCodePrefixes {
		if strings.HasPrefix(digits, cc) && len(digits) > len(cc) {
			digits = digits[len(cc):]
			break
		}
	}
	if strings.HasPrefix(digits, "0") && len(digits) > 1 {
		digits = digits[1:]
	}
	return digits
}

// NormalizeGender canonicalizes the free-text gender values seen on
// collection devices to a two-value code. Unknown spellings normalize to
// empty and never score.
func NormalizeGender(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m", "male", "1", "ذكر":
		return "m"
	case "f", "female", "2", "أنثى":
		return "f"
	default:
		return ""
	}
}

// normalizeName lowercases and trims a name part for comparison.
func normalizeName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// editDistance is the Levenshtein distance over runes, two-row variant.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// partSimilarity scores one name part in [0,1]: 1 for identical, scaled
// down by edit distance relative to the longer part. Two empty parts carry
// no signal and score 0.
func partSimilarity(a, b string) float64 {
	a, b = normalizeName(a), normalizeName(b)
	if a == "" && b == "" {
		return 0
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	d := editDistance(a, b)
	if d >= longest {
		return 0
	}
	return 1 - float64(d)/float64(longest)
}

// Name-part weights. First and family names carry most of the signal;
// father's name disambiguates within a family.
const (
	weightFirstName  = 0.4
	weightFatherName = 0.2
	weightFamilyName = 0.4
)

// nameSimilarity combines the weighted per-part similarities into the
// 0..maxNameScore contribution of the composite score.
func nameSimilarity(firstA, fatherA, familyA, firstB, fatherB, familyB string) float64 {
	return weightFirstName*partSimilarity(firstA, firstB) +
		weightFatherName*partSimilarity(fatherA, fatherB) +
		weightFamilyName*partSimilarity(familyA, familyB)
}

// familyNamePrefix is the bucket key used to prefilter person comparisons.
// Two runes of the normalized family name; empty names share one bucket.
func familyNamePrefix(familyName string) string {
	name := []rune(normalizeName(familyName))
	if len(name) < 2 {
		return string(name)
	}
	return string(name[:2])
}
