package gate

import "strings"

// Question-word prefixes and commerce-inquiry phrases used to classify a
// comment as worth answering. Matching is case-insensitive.
var questionWords = []string{
	"what", "how", "when", "where", "why", "who", "which",
	"can", "does", "is", "are", "will", "do",
}

var commercePhrases = []string{
	"price", "cost", "how much", "available", "in stock", "shipping",
	"discount", "where can i buy", "tell me about", "details", "more info",
}

// IsInquiry reports whether a comment reads like a question or a product
// inquiry: it ends with a question mark, starts with a question word, or
// contains a commerce phrase.
func IsInquiry(comment string) bool {
	text := strings.ToLower(strings.TrimSpace(comment))
	if text == "" {
		return false
	}

	if strings.HasSuffix(text, "?") {
		return true
	}

	first, _, _ := strings.Cut(text, " ")
	for _, w := range questionWords {
		if first == w {
			return true
		}
	}

	for _, p := range commercePhrases {
		if strings.Contains(text, p) {
			return true
		}
	}

	return false
}
