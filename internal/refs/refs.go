// Package refs extracts cross-system references from free-form text.
package refs

import (
	"regexp"
	"strings"

	"github.com/danielolaszy/weave/pkg/models"
)

// NoTag is returned by Tags when a message carries no tag.
const NoTag = "No tag found"

var (
	issueKeyPattern = regexp.MustCompile(`[A-Z][A-Z0-9]*-[0-9]+`)
	tagPattern      = regexp.MustCompile(`#(\w+)|tags?:?\s*(\d+)`)
	wordPattern     = regexp.MustCompile(`\b[a-z0-9]+\b`)
)

// IssueKeys returns the distinct issue keys mentioned in text, in order of
// first appearance. Matching is case-insensitive; keys are returned upper-cased.
func IssueKeys(text string) []string {
	return unique(issueKeyPattern.FindAllString(strings.ToUpper(text), -1))
}

// Tags returns the distinct lower-cased tags in text. Both "#release" and
// "tag: 42" forms are recognized. The result is never empty.
func Tags(text string) []string {
	var tags []string
	for _, m := range tagPattern.FindAllStringSubmatch(strings.ToLower(text), -1) {
		switch {
		case m[1] != "":
			tags = append(tags, m[1])
		case m[2] != "":
			tags = append(tags, m[2])
		}
	}

	tags = unique(tags)
	if len(tags) == 0 {
		return []string{NoTag}
	}
	return tags
}

// Words returns the distinct lower-cased alphanumeric words of text.
func Words(text string) []string {
	return unique(wordPattern.FindAllString(strings.ToLower(text), -1))
}

// AuthorIdentity picks the version-control identity of a commit author:
// the account login when present, otherwise the commit's author name.
func AuthorIdentity(login, name string) string {
	if login = strings.TrimSpace(login); login != "" {
		return login
	}
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return models.Unknown
}

func unique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
