package util

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

const WordsPerMinute = 200

// WordCount counts whitespace-separated words in the text nodes of an HTML fragment.
func WordCount(fragment string) int {
	z := html.NewTokenizer(strings.NewReader(fragment))
	words := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return words
		case html.TextToken:
			words += len(strings.Fields(string(z.Text())))
		}
	}
}

// CalculateReadTime returns the display read time for HTML content, never less than one minute.
func CalculateReadTime(content string) string {
	words := WordCount(content)
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}
