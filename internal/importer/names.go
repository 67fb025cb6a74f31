package importer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ResolveName picks the display name for a row: the name extracted from the
// data column wins, then the name column, then nothing.
func ResolveName(extracted, fromCSV string) (string, bool) {
	if name := strings.TrimSpace(extracted); name != "" {
		return name, true
	}
	if name := strings.TrimSpace(fromCSV); name != "" {
		return name, true
	}
	return "", false
}

// Capitalize lowercases name and uppercases the first letter of every word
// longer than two characters. The first and last words are always
// capitalized, so "maria da silva" becomes "Maria da Silva" but "da silva"
// becomes "Da Silva". Words are separated by single spaces.
func Capitalize(name string) string {
	if name == "" {
		return name
	}

	// cases.Caser keeps state between calls, so each call gets its own.
	words := strings.Split(cases.Lower(language.Und).String(name), " ")
	last := len(words) - 1
	for i, word := range words {
		if word == "" {
			continue
		}
		if i == 0 || i == last || utf8.RuneCountInString(word) > 2 {
			words[i] = upperFirst(word)
		}
	}
	return strings.Join(words, " ")
}

func upperFirst(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r)) + word[size:]
}
