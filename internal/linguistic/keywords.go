package linguistic

import (
	"regexp"
	"strings"
	"unicode"
)

// stopWords are dropped before keyword comparison.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"as": true, "is": true, "was": true, "are": true, "were": true,
	"been": true, "be": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"should": true, "could": true, "may": true, "might": true,
	"must": true, "can": true, "this": true, "that": true,
	"it": true, "its": true, "into": true, "each": true, "given": true,
}

// actionVerbs are the prompt verbs that usually name a requirement.
var actionVerbs = []string{
	"create", "add", "delete", "remove", "update", "edit",
	"save", "load", "fetch", "get", "set", "send",
	"validate", "verify", "check", "handle", "process",
	"calculate", "compute", "sort", "filter", "search",
	"reverse", "merge", "split", "count", "convert", "parse",
}

// dataTypeWords are the prompt nouns that name a shape requirement.
var dataTypeWords = []string{"list", "dict", "dictionary", "string", "tuple", "set", "number", "integer", "float"}

var wordRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// Tokenize lowercases, splits on non-word characters, breaks
// snake_case and camelCase apart, and drops stop words.
func Tokenize(text string) []string {
	var tokens []string
	for _, word := range wordRe.FindAllString(text, -1) {
		for _, part := range splitIdentifier(word) {
			part = strings.ToLower(part)
			if part == "" || stopWords[part] {
				continue
			}
			tokens = append(tokens, part)
		}
	}
	return tokens
}

// splitIdentifier breaks snake_case and camelCase identifiers into
// their word parts.
func splitIdentifier(word string) []string {
	var parts []string
	for _, chunk := range strings.Split(word, "_") {
		if chunk == "" {
			continue
		}
		start := 0
		runes := []rune(chunk)
		for i := 1; i < len(runes); i++ {
			if unicode.IsUpper(runes[i]) && !unicode.IsUpper(runes[i-1]) {
				parts = append(parts, string(runes[start:i]))
				start = i
			}
		}
		parts = append(parts, string(runes[start:]))
	}
	return parts
}

// promptNumbers extracts the distinct numeric literals mentioned in a
// prompt.
var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

func promptNumbers(prompt string) []string {
	seen := make(map[string]bool)
	var nums []string
	for _, n := range numberRe.FindAllString(prompt, -1) {
		if !seen[n] {
			seen[n] = true
			nums = append(nums, n)
		}
	}
	return nums
}

// promptQuotedStrings extracts quoted example strings from a prompt.
var quotedRe = regexp.MustCompile(`["']([^"']{1,64})["']`)

func promptQuotedStrings(prompt string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range quotedRe.FindAllStringSubmatch(prompt, -1) {
		s := m[1]
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// promptSequences extracts bracketed sequence examples such as
// "[3,1,2]" from a prompt.
var sequenceRe = regexp.MustCompile(`\[[^\[\]]{1,64}\]`)

func promptSequences(prompt string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range sequenceRe.FindAllString(prompt, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// normalizeSequence strips whitespace from a sequence literal so
// "[3, 1, 2]" and "[3,1,2]" compare equal.
func normalizeSequence(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
