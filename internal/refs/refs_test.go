package refs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueKeys(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "mixed case", text: "fix for proj-12 and PROJ-99", want: []string{"PROJ-12", "PROJ-99"}},
		{name: "duplicates collapse", text: "ABC-1 again abc-1", want: []string{"ABC-1"}},
		{name: "digits in project", text: "A1B-7: tweak", want: []string{"A1B-7"}},
		{name: "no keys", text: "refactor the parser", want: nil},
		{name: "leading digit is not a key start", text: "see 1-2", want: nil},
		{name: "key inside a branch name", text: "Merge branch 'feature/ops-42-cache'", want: []string{"OPS-42"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IssueKeys(tt.text))
		})
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "no tag returns sentinel", text: "plain message", want: []string{"No tag found"}},
		{name: "empty message", text: "", want: []string{"No tag found"}},
		{name: "hash tags lower-cased", text: "Ship it #Release #hotfix", want: []string{"release", "hotfix"}},
		{name: "tag keyword with number", text: "tag: 42", want: []string{"42"}},
		{name: "tags keyword without colon", text: "Tags 7", want: []string{"7"}},
		{name: "both forms deduplicated", text: "#ui tag:3 #UI", want: []string{"ui", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tags(tt.text))
		})
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"fix", "the", "login", "bug", "abc", "12"}, Words("Fix the login bug, ABC-12, the fix"))
	assert.Nil(t, Words("   "))
}

func TestAuthorIdentity(t *testing.T) {
	assert.Equal(t, "octocat", AuthorIdentity("octocat", "The Octocat"))
	assert.Equal(t, "The Octocat", AuthorIdentity("", "The Octocat"))
	assert.Equal(t, "Unknown", AuthorIdentity(" ", ""))
}
