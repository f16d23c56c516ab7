package util

import (
	"strings"
	"testing"
	"time"
)

func TestGetFrontMatter(t *testing.T) {
	testCases := []struct {
		name          string
		markdown      []byte
		expectError   bool
		expectedTitle string
		expectedDate  time.Time
	}{
		{
			name: "Valid Front Matter",
			markdown: []byte(`%%%
title = "Hello World"
date = 2025-01-01 00:00:00Z
%%%
# Content`),
			expectError:   false,
			expectedTitle: "Hello World",
			expectedDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "No Front Matter",
			markdown: []byte(`# Just Content
No front matter here.`),
			expectError: true,
		},
		{
			name:        "Empty File",
			markdown:    []byte(""),
			expectError: true,
		},
		{
			name: "Content Before Front Matter",
			markdown: []byte(`
# This should be ignored
%%%
title = "Hello World"
date = 2025-01-01 00:00:00Z
%%%
# Content`),
			expectError: true,
		},
		{
			name: "Extra Whitespace",
			markdown: []byte(`


%%%

title = "Hello World"
date = 2025-01-01 00:00:00Z

%%%
# Content`),
			expectError:   false,
			expectedTitle: "Hello World",
			expectedDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "Malformed Front Matter",
			markdown: []byte(`%%%
title = "Incomplete
# Content`),
			expectError: true,
		},
		{
			name: "Front Matter with No Title",
			markdown: []byte(`%%%
date = 2025-01-01 00:00:00Z
%%%
# Content`),
			expectError:   false,
			expectedTitle: "",
			expectedDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "Front Matter with No Date",
			markdown: []byte(`%%%
title = "No Date"
%%%
# Content`),
			expectError:   false,
			expectedTitle: "No Date",
			expectedDate:  time.Time{}, // Zero value for time
		},
		{
			name:        "Only Delimiters",
			markdown:    []byte("%%% %%%"),
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			info, err := GetFrontMatter(tc.markdown)

			if tc.expectError {
				if err == nil {
					t.Errorf("Expected error, but got none")
				}
				if info != nil {
					t.Errorf("Expected nil info when error occurs, but got %+v", info)
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error, but got: %v", err)
			}

			if info == nil {
				t.Fatal("Expected front matter info, but got nil")
			}

			if info.Title != tc.expectedTitle {
				t.Errorf("Expected title '%s', but got '%s'", tc.expectedTitle, info.Title)
			}

			if !info.Date.Equal(tc.expectedDate) {
				t.Errorf("Expected date '%v', but got '%v'", tc.expectedDate, info.Date)
			}
		})
	}
}

func TestGetFrontMatterBlogFields(t *testing.T) {
	md := []byte(`%%%
title = "Flank the Competition"
category = "Tactics"
type = "featured"
status = "published"
excerpt = "Move where they are not."
%%%
# Body`)

	info, err := GetFrontMatter(md)
	if err != nil {
		t.Fatalf("Expected no error, but got: %v", err)
	}

	if info.Category != "Tactics" {
		t.Errorf("Expected category 'Tactics', got '%s'", info.Category)
	}
	if info.Type != "featured" || info.Status != "published" {
		t.Errorf("Expected featured/published, got %s/%s", info.Type, info.Status)
	}
	if info.Excerpt != "Move where they are not." {
		t.Errorf("Unexpected excerpt '%s'", info.Excerpt)
	}

	body := StripFrontMatter(md)
	if string(body) != "# Body" {
		t.Errorf("Expected body '# Body', got %q", body)
	}
}

func TestStripFrontMatterWithoutFrontMatter(t *testing.T) {
	md := []byte("# Just content")
	if got := StripFrontMatter(md); string(got) != string(md) {
		t.Errorf("Expected content unchanged, got %q", got)
	}
}

func TestStripFrontMatterDelimiterLines(t *testing.T) {
	testCases := []struct {
		name     string
		markdown string
		expected string
	}{
		{"Closing delimiter at end of file", "%%%\ntitle = \"Moats\"\n%%%", ""},
		{"Delimiters with trailing spaces", "%%%  \ntitle = \"Moats\"\n%%% \nBody", "Body"},
		{"Percent signs inside the body", "%%%\ntitle = \"Moats\"\n%%%\nMargins fell 50%%% in a year.", "Margins fell 50%%% in a year."},
		{"Opening delimiter shares a line", "%%% title = \"Moats\"\n%%%\nBody", "%%% title = \"Moats\"\n%%%\nBody"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := string(StripFrontMatter([]byte(tc.markdown))); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestGenerateSlug(t *testing.T) {
	testCases := []struct {
		title    string
		expected string
	}{
		{"Hello, World!  Foo", "hello-world-foo"},
		{"Already-a-slug", "already-a-slug"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"Multiple --- hyphens", "multiple-hyphens"},
		{"-Edge- -hyphens-", "edge-hyphens"},
		{"Q3 2025: Growth Playbook", "q3-2025-growth-playbook"},
		{"Café Strategy", "caf-strategy"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.title, func(t *testing.T) {
			if got := GenerateSlug(tc.title); got != tc.expected {
				t.Errorf("GenerateSlug(%q) = %q, want %q", tc.title, got, tc.expected)
			}
		})
	}
}

func TestGenerateSlugDeterministic(t *testing.T) {
	title := "The Art of Business War"
	first := GenerateSlug(title)
	for i := 0; i < 10; i++ {
		if got := GenerateSlug(title); got != first {
			t.Fatalf("Expected stable slug %q, got %q", first, got)
		}
	}
}

func TestWordCount(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		expected int
	}{
		{"Empty", "", 0},
		{"Plain text", "one two three", 3},
		{"Tags are not words", "<p>one <strong>two</strong></p><p>three</p>", 3},
		{"Whitespace runs", "<p>  one \n\t two  </p>", 2},
		{"Attributes ignored", `<a href="https://example.com/a b c">link</a>`, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WordCount(tc.content); got != tc.expected {
				t.Errorf("Expected %d words, got %d", tc.expected, got)
			}
		})
	}
}

func TestCalculateReadTime(t *testing.T) {
	words := func(n int) string {
		return "<p>" + strings.Repeat("word ", n) + "</p>"
	}

	testCases := []struct {
		name     string
		content  string
		expected string
	}{
		{"Empty content is one minute", "", "1 min read"},
		{"Short post", words(10), "1 min read"},
		{"Exactly one minute", words(200), "1 min read"},
		{"Just over one minute", words(201), "2 min read"},
		{"Long post", words(1000), "5 min read"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalculateReadTime(tc.content); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("content"))
	b := ContentHashString("content")
	if a != b {
		t.Errorf("Expected equal hashes, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(a))
	}
	if a == ContentHash([]byte("other")) {
		t.Error("Expected different content to hash differently")
	}
}
