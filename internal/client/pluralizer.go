package client

import "strings"

// EnglishPluralizer applies regular English suffix rules. Irregular nouns
// are looked up in a small fixed table.
type EnglishPluralizer struct{}

var irregular = map[string]string{
	"person": "people",
	"child":  "children",
	"man":    "men",
	"woman":  "women",
}

// Pluralize implements Pluralizer.
func (EnglishPluralizer) Pluralize(word string) string {
	lower := strings.ToLower(word)
	for singular, plural := range irregular {
		if hasWordSuffix(word, singular) {
			return keepCase(word, len(singular), plural)
		}
	}
	switch {
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "ch"), strings.HasSuffix(lower, "sh"):
		return word + "es"
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !isVowel(lower[len(lower)-2]):
		return word[:len(word)-1] + "ies"
	}
	return word + "s"
}

// Singularize implements Pluralizer.
func (EnglishPluralizer) Singularize(word string) string {
	lower := strings.ToLower(word)
	for singular, plural := range irregular {
		if hasWordSuffix(word, plural) {
			return keepCase(word, len(plural), singular)
		}
	}
	switch {
	case strings.HasSuffix(lower, "ies") && len(lower) > 3:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(lower, "ses"), strings.HasSuffix(lower, "xes"),
		strings.HasSuffix(lower, "ches"), strings.HasSuffix(lower, "shes"):
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "ss"):
		return word
	case strings.HasSuffix(lower, "s"):
		return word[:len(word)-1]
	}
	return word
}

// hasWordSuffix reports whether word ends with suffix as a whole word or as
// the last capitalized part of a compound ("SalesPerson").
func hasWordSuffix(word, suffix string) bool {
	if len(word) < len(suffix) || !strings.EqualFold(word[len(word)-len(suffix):], suffix) {
		return false
	}
	start := len(word) - len(suffix)
	return start == 0 || (word[start] >= 'A' && word[start] <= 'Z')
}

// keepCase replaces the last n bytes of word, keeping an initial capital.
func keepCase(word string, n int, repl string) string {
	head := word[:len(word)-n]
	tail := word[len(word)-n:]
	if tail != "" && tail[0] >= 'A' && tail[0] <= 'Z' {
		repl = strings.ToUpper(repl[:1]) + repl[1:]
	}
	return head + repl
}

func isVowel(b byte) bool {
	return strings.IndexByte("aeiou", b) >= 0
}
