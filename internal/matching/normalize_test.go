package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"+963 944 123456", "944123456"},
		{"00963944123456", "944123456"},
		{"0944123456", "944123456"},
		{"944123456", "944123456"},
		{"0944-123-456", "944123456"},
		{"", ""},
		{"abc", ""},
		{"0", "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.raw), "raw %q", tt.raw)
	}
}

func TestNormalizeGender(t *testing.T) {
	assert.Equal(t, "m", NormalizeGender("M"))
	assert.Equal(t, "m", NormalizeGender("male"))
	assert.Equal(t, "m", NormalizeGender("1"))
	assert.Equal(t, "m", NormalizeGender("ذكر"))
	assert.Equal(t, "f", NormalizeGender(" Female "))
	assert.Equal(t, "f", NormalizeGender("2"))
	assert.Equal(t, "f", NormalizeGender("أنثى"))
	assert.Equal(t, "", NormalizeGender("unknown"))
	assert.Equal(t, "", NormalizeGender(""))
}

func TestPartSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, partSimilarity("Ahmad", "ahmad"))
	assert.Equal(t, 0.0, partSimilarity("", ""))
	assert.Equal(t, 0.0, partSimilarity("Ahmad", ""))
	assert.InDelta(t, 0.8, partSimilarity("Ahmad", "Ahmed"), 0.001)
}

func TestEditDistance(t *testing.T) {
	assert.Equal(t, 0, editDistance("سمير", "سمير"))
	assert.Equal(t, 1, editDistance("ahmad", "ahmed"))
	assert.Equal(t, 4, editDistance("", "abcd"))
	assert.Equal(t, 3, editDistance("kitten", "sitting"))
}

func TestFamilyNamePrefix(t *testing.T) {
	assert.Equal(t, "ha", familyNamePrefix("Haddad"))
	assert.Equal(t, "ha", familyNamePrefix("  haddad  "))
	assert.Equal(t, "x", familyNamePrefix("X"))
	assert.Equal(t, "", familyNamePrefix(""))
	assert.Equal(t, "حد", familyNamePrefix("حداد"))
}
