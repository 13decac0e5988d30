package service

import (
	"regexp"
	"strings"
)

// Identity extraction for conversational handoffs. All functions are pure and
// return the empty string when nothing plausible is found.

var (
	namePrefixes = []string{
		"my name is ",
		"i'm ",
		"i am ",
		"this is ",
		"call me ",
		"name's ",
	}

	nameStopWords = map[string]bool{
		"and": true,
		"the": true,
		"a":   true,
	}

	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	bareNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z.'\-]*(\s+[a-zA-Z][a-zA-Z.'\-]*){0,2}$`)
)

// ExtractName finds a self-introduction in the message. When askedForName is
// set, a bare one-to-three word reply is also accepted as a name.
func ExtractName(message string, askedForName bool) string {
	lower := strings.ToLower(message)

	for _, prefix := range namePrefixes {
		idx := strings.Index(lower, prefix)
		if idx < 0 {
			continue
		}
		rest := message[idx+len(prefix):]
		if name := takeNameWords(rest); name != "" {
			return name
		}
	}

	if askedForName {
		trimmed := strings.TrimSpace(message)
		trimmed = strings.TrimRight(trimmed, ".,!?")
		if bareNamePattern.MatchString(trimmed) {
			if name := takeNameWords(trimmed); name != "" {
				return name
			}
		}
	}

	return ""
}

// takeNameWords keeps up to three leading words, dropping filler and
// trailing punctuation
func takeNameWords(text string) string {
	words := strings.Fields(text)
	var kept []string
	for _, word := range words {
		if len(kept) == 3 {
			break
		}
		cleaned := strings.Trim(word, ".,!?")
		if cleaned == "" {
			break
		}
		if nameStopWords[strings.ToLower(cleaned)] {
			break
		}
		// A word with digits or symbols is not part of a name
		if !bareNamePattern.MatchString(cleaned) {
			break
		}
		kept = append(kept, cleaned)
		// Trailing punctuation ends the introduction
		if cleaned != word {
			break
		}
	}
	return strings.Join(kept, " ")
}

// ExtractEmail returns the first email address in the message
func ExtractEmail(message string) string {
	return emailPattern.FindString(message)
}

// ExtractLinkedIn finds a LinkedIn URL and normalizes it to https
func ExtractLinkedIn(message string) string {
	for _, word := range strings.Fields(message) {
		if !strings.Contains(strings.ToLower(word), "linkedin.com") {
			continue
		}
		url := strings.Trim(word, `.,!?<>()"'`)
		if url == "" {
			continue
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			url = "https://" + url
		}
		return url
	}
	return ""
}
