package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywords(t *testing.T) {
	got := Keywords("The Eiffel Tower was completed in 1889 in Paris.")
	assert.Equal(t, []string{"eiffel", "tower", "completed", "1889", "paris"}, got)

	assert.Empty(t, Keywords("the and of in"))
	assert.Equal(t, []string{"42"}, Keywords("42"))
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		desc      string
		claim     []string
		candidate []string
		expected  float64
	}{
		{"half", []string{"a1", "b1", "c1", "d1"}, []string{"a1", "b1"}, 0.5},
		{"full", []string{"paris", "tower"}, []string{"tower", "paris", "extra"}, 1.0},
		{"none", []string{"paris"}, []string{"london"}, 0},
		{"empty claim", nil, []string{"paris"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Overlap(tt.claim, tt.candidate), 1e-9)
		})
	}
}

func TestIsNegated(t *testing.T) {
	assert.True(t, IsNegated("Vaccines do not cause autism"))
	assert.True(t, IsNegated("It isn't true that the moon is cheese"))
	assert.True(t, IsNegated("This claim is a myth"))
	assert.False(t, IsNegated("Vaccines are safe and effective"))
	assert.False(t, IsNegated("Nothing changed"), "words starting with no are not negation")
}

func TestStripTags(t *testing.T) {
	got := StripTags(`The <span class="searchmatch">Eiffel</span> Tower &amp; Paris`)
	assert.Equal(t, "The Eiffel Tower & Paris", got)

	assert.Equal(t, "", StripTags(""))
}
