package rag

import "strings"

var stopWords = toSet(`a about an and are as at be been being but by can could did do does
during for from had has have how i in into is it its may me might my not of on or shall
should that the these this those through to was were what when where which who whom
why will with would you your`)

// ExtractKeywords lowercases the question and drops stop words, punctuation
// and words shorter than three characters. Duplicates are removed.
func ExtractKeywords(question string) []string {
	seen := map[string]bool{}
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.Trim(w, "?.,!;:'\"()[]")
		if len(w) > 2 && !stopWords[w] && !seen[w] {
			seen[w] = true
			keywords = append(keywords, w)
		}
	}
	return keywords
}

func toSet(words string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}
