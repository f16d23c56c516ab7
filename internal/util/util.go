// Package util provides content hashing, slug and read-time derivation, and front matter parsing.
package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/gomarkdown/markdown"
	"github.com/mmarkdown/mmark/v2/mast"
)

// ExtendedTitleData is Mmark title data plus the blog fields an imported post may declare.
type ExtendedTitleData struct {
	*mast.TitleData
	Consumed int

	Category string `toml:"category"`
	Type     string `toml:"type"`
	Status   string `toml:"status"`
	Excerpt  string `toml:"excerpt"`
	Cover    string `toml:"cover_image"`
}

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

var (
	frontMatterDelim = []byte("%%%")
	errNoFrontMatter = errors.New("invalid front matter format")
)

// splitFrontMatter locates a block opened and closed by a line holding only %%%.
// consumed is the offset of the first body byte.
func splitFrontMatter(md []byte) (front []byte, consumed int, err error) {
	open, _, found := bytes.Cut(md, []byte("\n"))
	if !found || !bytes.Equal(bytes.TrimSpace(open), frontMatterDelim) {
		return nil, 0, errNoFrontMatter
	}

	start := len(open) + 1
	for offset := start; offset <= len(md); {
		line, _, _ := bytes.Cut(md[offset:], []byte("\n"))
		if bytes.Equal(bytes.TrimSpace(line), frontMatterDelim) {
			end := offset + len(line)
			if end < len(md) {
				end++
			}
			return md[start:offset], end, nil
		}
		offset += len(line) + 1
	}
	return nil, 0, errNoFrontMatter
}

// GetFrontMatter decodes the TOML block between %%% lines at the top of md.
func GetFrontMatter(md []byte) (*ExtendedTitleData, error) {
	md = bytes.TrimLeft(markdown.NormalizeNewlines(md), "\n \t\r")

	front, consumed, err := splitFrontMatter(md)
	if err != nil {
		return nil, err
	}

	info := &ExtendedTitleData{TitleData: &mast.TitleData{}}
	if _, err := toml.Decode(string(front), info); err != nil {
		return nil, fmt.Errorf("failed to decode front matter: %w", err)
	}
	if info.Language == "" {
		info.Language = "en"
	}
	info.Consumed = consumed
	return info, nil
}

// StripFrontMatter returns md without its leading front matter block, if any.
func StripFrontMatter(md []byte) []byte {
	info, err := GetFrontMatter(md)
	if err != nil {
		return md
	}
	md = bytes.TrimLeft(markdown.NormalizeNewlines(md), "\n \t\r")
	if info.Consumed >= len(md) {
		return nil
	}
	return md[info.Consumed:]
}
