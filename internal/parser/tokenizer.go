package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokNumber
	tokMarker
	tokPunct
)

// marker is a pictographic token with signal meaning.
type marker int

const (
	markerNone marker = iota
	markerSuccess
	markerFailure
	markerUp
	markerDown
)

var markerRunes = map[rune]marker{
	'✅': markerSuccess,
	'❌': markerFailure,
	'↗': markerUp,
	'↘': markerDown,
}

type token struct {
	kind   tokenKind
	text   string // lower-cased for words, literal otherwise
	marker marker
}

func (t token) isWord(words ...string) bool {
	if t.kind != tokWord {
		return false
	}
	for _, w := range words {
		if t.text == w {
			return true
		}
	}
	return false
}

func (t token) isPunct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

// normalize applies NFKC and drops emoji presentation selectors so that
// "↗️" and "↗" tokenize identically.
func normalize(text string) string {
	text = norm.NFKC.String(text)
	return strings.Map(func(r rune) rune {
		switch r {
		case '\uFE0F', '\uFE0E', '\u200D':
			return -1
		}
		return r
	}, text)
}

// tokenize splits normalized text into words, numbers, markers and punctuation.
// Whitespace separates tokens and is dropped.
func tokenize(text string) []token {
	runes := []rune(normalize(text))
	tokens := make([]token, 0, len(runes)/3)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case isDigit(r) || (r == '.' && i+1 < len(runes) && isDigit(runes[i+1])):
			j := i
			for j < len(runes) && (isDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			num := strings.TrimRight(string(runes[i:j]), ".")
			tokens = append(tokens, token{kind: tokNumber, text: num})
			// a trailing sentence dot is kept as punctuation
			if len(num) < j-i {
				tokens = append(tokens, token{kind: tokPunct, text: "."})
			}
			i = j

		case unicode.IsLetter(r):
			j := i
			for j < len(runes) && unicode.IsLetter(runes[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokWord, text: strings.ToLower(string(runes[i:j]))})
			i = j

		default:
			if m, ok := markerRunes[r]; ok {
				tokens = append(tokens, token{kind: tokMarker, text: string(r), marker: m})
			} else {
				tokens = append(tokens, token{kind: tokPunct, text: string(r)})
			}
			i++
		}
	}

	return tokens
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
