package gen

import (
	"strings"
	"sync"

	"github.com/go-openapi/inflect"
)

var (
	acronymsMu sync.RWMutex
	acronyms   = map[string]bool{
		"API":  true,
		"HTML": true,
		"HTTP": true,
		"ID":   true,
		"IP":   true,
		"JSON": true,
		"SQL":  true,
		"URL":  true,
		"UUID": true,
	}
)

// AddAcronym registers a word that pascal writes in upper case.
func AddAcronym(word string) {
	acronymsMu.Lock()
	defer acronymsMu.Unlock()
	acronyms[strings.ToUpper(word)] = true
}

func isAcronym(word string) bool {
	acronymsMu.RLock()
	defer acronymsMu.RUnlock()
	return acronyms[strings.ToUpper(word)]
}

// pascal converts a schema name to an exported Go identifier:
// "title_author" becomes "TitleAuthor" and "user_id" becomes "UserID".
func pascal(s string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(s, isSeparator) {
		for _, word := range splitCase(part) {
			if isAcronym(word) {
				b.WriteString(strings.ToUpper(word))
			} else {
				b.WriteString(inflect.Camelize(word))
			}
		}
	}
	return b.String()
}

// splitCase splits a camel case word before each upper case letter that
// follows a lower case one: "userId" becomes "user", "Id".
func splitCase(s string) []string {
	var words []string
	start := 0
	for i := 1; i < len(s); i++ {
		if isUpper(s[i]) && !isUpper(s[i-1]) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == ' ' || r == '\t'
}

// receiver returns the receiver name of a method on typ.
func receiver(typ string) string {
	if typ == "" {
		return "x"
	}
	return strings.ToLower(typ[:1])
}
