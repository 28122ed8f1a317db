package services

import (
	"regexp"
	"sort"
	"strings"
)

// minTermLength is the shortest word considered significant.
const minTermLength = 4

var termPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on",
		"at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this",
		"that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than",
		"so", "such", "into", "about", "between", "through", "during", "before", "after", "above",
		"below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "should", "now",
		"have", "has", "had", "would", "could", "shall", "must", "also", "their", "there",
		"they", "them", "which", "while", "where", "when", "what", "your", "ours", "each", "other",
		"some", "only", "more", "most", "many", "much", "well", "does", "done", "here",
		"within", "without", "upon", "across", "including",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// SignificantTerms returns up to n of the most frequent words in text.
// Words are lowercased; stopwords and words shorter than four letters are ignored.
// Ties keep first-appearance order through the stable sort.
func SignificantTerms(text string, n int) []string {
	if n <= 0 {
		return nil
	}

	type term struct {
		word  string
		count int
	}
	seen := make(map[string]*term)
	var order []*term

	for _, tok := range termPattern.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(tok)) < minTermLength {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if t, ok := seen[tok]; ok {
			t.count++
			continue
		}
		t := &term{word: tok, count: 1}
		seen[tok] = t
		order = append(order, t)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].count > order[j].count
	})

	if len(order) > n {
		order = order[:n]
	}
	terms := make([]string, len(order))
	for i, t := range order {
		terms[i] = t.word
	}
	return terms
}

// BuildContextQuery joins topic words, fixed keywords and significant terms into
// one query, dropping case-insensitive duplicates.
func BuildContextQuery(topicHint string, keywords, terms []string) string {
	var parts []string
	seen := make(map[string]struct{})
	add := func(word string) {
		word = strings.TrimSpace(word)
		if word == "" {
			return
		}
		key := strings.ToLower(word)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		parts = append(parts, word)
	}

	for _, w := range strings.Fields(topicHint) {
		add(w)
	}
	for _, w := range keywords {
		add(w)
	}
	for _, w := range terms {
		add(w)
	}
	return strings.Join(parts, " ")
}
