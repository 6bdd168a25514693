package match

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxWords is the number of distinct search words a run accepts.
const MaxWords = 3

var (
	// ErrNoWords is returned when no non-empty word is given.
	ErrNoWords = errors.New("at least one search word is required")

	// ErrTooManyWords is returned when more than MaxWords distinct words remain
	// after normalization.
	ErrTooManyWords = fmt.Errorf("at most %d distinct words can be searched", MaxWords)
)

// Word is one normalized search term bound to its slot in every result array.
type Word struct {
	Literal string
	Slot    int
}

// WordSet is the compiled, deduplicated list of search words for a run.
// It is immutable and safe to share between workers.
type WordSet struct {
	words []Word
}

// Compile normalizes raw words, drops duplicates keeping the first
// occurrence, and assigns slots in order of first appearance.
func Compile(raw []string) (*WordSet, error) {
	n := NewNormalizer()
	seen := make(map[string]bool, len(raw))
	ws := &WordSet{}
	for _, r := range raw {
		lit := strings.TrimSpace(n.String(r))
		if lit == "" || seen[lit] {
			continue
		}
		seen[lit] = true
		ws.words = append(ws.words, Word{Literal: lit, Slot: len(ws.words)})
	}
	if len(ws.words) == 0 {
		return nil, ErrNoWords
	}
	if len(ws.words) > MaxWords {
		return nil, fmt.Errorf("%w (got %d)", ErrTooManyWords, len(ws.words))
	}
	return ws, nil
}

// Len returns the number of distinct words.
func (ws *WordSet) Len() int { return len(ws.words) }

// Literals returns the normalized words in slot order.
func (ws *WordSet) Literals() []string {
	out := make([]string, len(ws.words))
	for i, w := range ws.words {
		out[i] = w.Literal
	}
	return out
}

// Count fills counts (len >= Len()) with the number of whole-word occurrences
// of every word in an already-normalized line and returns counts[:Len()].
func (ws *WordSet) Count(line string, counts []int) []int {
	counts = counts[:len(ws.words)]
	for i, w := range ws.words {
		counts[i] = CountWord(line, w.Literal)
	}
	return counts
}

// CountWord returns the number of non-overlapping occurrences of word in s that
// are bounded on both sides by a non-word rune or the ends of s.
func CountWord(s, word string) int {
	if word == "" {
		return 0
	}
	count := 0
	pos := 0
	for pos <= len(s)-len(word) {
		i := strings.Index(s[pos:], word)
		if i < 0 {
			break
		}
		start := pos + i
		end := start + len(word)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			count++
			pos = end
			continue
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		pos = start + size
	}
	return count
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
