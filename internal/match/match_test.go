package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"José", "jose"},
		{"AÇÃO", "acao"},
		{"Ærøskøbing", "ærøskøbing"},
		{"naïve café", "naive cafe"},
		{"Straße", "strasse"},
		{"İstanbul", "istanbul"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer()
	for _, s := range []string{"Ação É Çà", "ΆΈΉ ΐ", "İIıi", "ﬁle ǅ", "Ünïcödé Straße"} {
		once := n.String(s)
		assert.Equal(t, once, n.String(once), "input %q", s)
	}
}

func TestCompileDedupesAfterNormalization(t *testing.T) {
	ws, err := Compile([]string{"José", "jose", "JOSÉ", "maria", "joao"})
	require.NoError(t, err)
	assert.Equal(t, []string{"jose", "maria", "joao"}, ws.Literals())
	for i, w := range ws.words {
		assert.Equal(t, i, w.Slot)
	}
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile(nil)
	assert.ErrorIs(t, err, ErrNoWords)

	_, err = Compile([]string{" ", ""})
	assert.ErrorIs(t, err, ErrNoWords)

	_, err = Compile([]string{"a", "b", "c", "d"})
	assert.ErrorIs(t, err, ErrTooManyWords)
}

func TestCountWord(t *testing.T) {
	tests := []struct {
		name string
		line string
		word string
		want int
	}{
		{"single", "the cat sat", "cat", 1},
		{"repeated", "cat cat, cat.", "cat", 3},
		{"substring not counted", "concatenate cats", "cat", 0},
		{"prefix of longer word", "category", "cat", 0},
		{"suffix of longer word", "bobcat", "cat", 0},
		{"underscore is a word rune", "cat_x x_cat", "cat", 0},
		{"digits are word runes", "cat9 9cat", "cat", 0},
		{"punctuation bounds", "(cat)-cat!", "cat", 2},
		{"line ends", "cat", "cat", 1},
		{"newline bound", "a cat\n", "cat", 1},
		{"skips embedded then matches", "cats cat", "cat", 1},
		{"non-ascii neighbours", "écat cat", "cat", 1},
		{"empty word", "cat", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountWord(tt.line, tt.word))
		})
	}
}

func TestWordSetCount(t *testing.T) {
	ws, err := Compile([]string{"aa", "bb", "cc"})
	require.NoError(t, err)

	buf := make([]int, MaxWords)
	got := ws.Count("aa bb aa dd", buf)
	assert.Equal(t, []int{2, 1, 0}, got)
}

func TestClassify(t *testing.T) {
	ws, err := Compile([]string{"aa", "bb", "cc"})
	require.NoError(t, err)

	tests := []struct {
		line     string
		allWords bool
		want     bool
	}{
		{"aa bb cc dd", true, true},
		{"aa bb dd", true, false},
		{"aa dd ee", true, true},
		{"dd ee", true, false},
		{"aa dd ee", false, true},
		{"aa bb dd", false, false},
		{"aa bb cc", false, false},
		{"AA Bb cC", false, false},
		{"dd ee", false, false},
	}
	buf := make([]int, MaxWords)
	for _, tt := range tests {
		counts := ws.Count(Normalize(tt.line), buf)
		assert.Equal(t, tt.want, Classify(counts, tt.allWords), "line %q all=%v", tt.line, tt.allWords)
	}
}

func TestClassifySingleWord(t *testing.T) {
	assert.True(t, Classify([]int{3}, false))
	assert.True(t, Classify([]int{3}, true))
	assert.False(t, Classify([]int{0}, true))
}
