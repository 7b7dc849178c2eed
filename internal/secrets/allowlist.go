package secrets

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Allowlist holds content patterns that are never redacted.
type Allowlist struct {
	Regexes []string
	// StopWords are literal substrings that exempt a match.
	StopWords []string
}

// LoadAllowlist reads an allowlist file in the gitleaks layout:
//
//	[allowlist]
//	regexes = ['''example-key-[0-9]+''']
//	stopwords = ["dummy"]
//
// A missing file yields an empty allowlist.
func LoadAllowlist(path string) (*Allowlist, error) {
	if path == "" {
		return &Allowlist{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &Allowlist{}, nil
		}
		return nil, err
	}

	var file struct {
		Allowlist struct {
			Regexes   []string `toml:"regexes"`
			StopWords []string `toml:"stopwords"`
		} `toml:"allowlist"`
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}
	for _, pattern := range file.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid content pattern '%s' in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
	}
	return &Allowlist{
		Regexes:   file.Allowlist.Regexes,
		StopWords: file.Allowlist.StopWords,
	}, nil
}

type compiledAllowlist struct {
	regexes   []*regexp.Regexp
	stopWords []string
}

func (a *Allowlist) compile() (*compiledAllowlist, error) {
	c := &compiledAllowlist{}
	if a == nil {
		return c, nil
	}
	for _, pattern := range a.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRegex, pattern, err)
		}
		c.regexes = append(c.regexes, re)
	}
	c.stopWords = append(c.stopWords, a.StopWords...)
	return c, nil
}

func (c *compiledAllowlist) allows(match string) bool {
	for _, re := range c.regexes {
		if re.MatchString(match) {
			return true
		}
	}
	for _, w := range c.stopWords {
		if w != "" && containsFold(match, w) {
			return true
		}
	}
	return false
}
