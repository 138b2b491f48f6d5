package prompt_test

import (
	"strings"
	"testing"

	"alfred/internal/prompt"
)

func TestCommitMessagePromptShape(t *testing.T) {
	p := prompt.CommitMessage("diff --git a/main.go b/main.go")

	for _, want := range []string{"<|system|>", "<|end|>", "<|user|>", "<|assistant|>", "conventional"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
	if !strings.HasSuffix(p, "<|assistant|>") {
		t.Fatalf("prompt must end at the assistant turn:\n%s", p)
	}
}

func TestCommitMessageTruncatesDiff(t *testing.T) {
	diff := strings.Repeat("x", 10000)
	p := prompt.CommitMessage(diff)

	if strings.Contains(p, strings.Repeat("x", 4001)) {
		t.Fatal("diff not truncated to 4000 chars")
	}
	if !strings.Contains(p, strings.Repeat("x", 4000)) {
		t.Fatal("truncated diff shorter than 4000 chars")
	}
}

func TestConflictResolutionTruncatesParts(t *testing.T) {
	big := strings.Repeat("y", 5000)
	p := prompt.ConflictResolution("main.go", big, big, big)

	if strings.Contains(p, strings.Repeat("y", 2001)) {
		t.Fatal("conflict part not truncated to 2000 chars")
	}
	for _, want := range []string{"main.go", "BASE (original)", "OURS (current branch)", "THEIRS (incoming branch)"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestRebaseStrategyListsCommits(t *testing.T) {
	p := prompt.RebaseStrategy([]string{"abc123 fix typo", "def456 add parser"}, "main")

	if !strings.Contains(p, "abc123 fix typo\ndef456 add parser") {
		t.Fatalf("commits not joined by newline:\n%s", p)
	}
	if !strings.Contains(p, "onto main") {
		t.Fatalf("target branch missing:\n%s", p)
	}
}

func TestFirstLine(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"feat: add thing\n\nLonger body here", "feat: add thing"},
		{"\n\n  fix: trim me  \nmore", "fix: trim me"},
		{"single", "single"},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := prompt.FirstLine(tc.in); got != tc.want {
			t.Fatalf("FirstLine(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCleanBranchName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"feature/add-login", "feature/add-login"},
		{`"feature/Add Login"`, "feature/add-login"},
		{"Fix Éclair Café bug", "fix-eclair-cafe-bug"},
		{"bugfix/fix__double  spaces", "bugfix/fix-double-spaces"},
		{"chore/cleanup\nsecond line ignored", "chore/cleanup"},
		{"---weird---", "weird"},
	}
	for _, tc := range cases {
		if got := prompt.CleanBranchName(tc.in); got != tc.want {
			t.Fatalf("CleanBranchName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTokenBudgets(t *testing.T) {
	if prompt.CommitMessageTokens != 100 || prompt.BranchNameTokens != 30 ||
		prompt.ConflictResolutionTokens != 500 || prompt.RebaseStrategyTokens != 200 {
		t.Fatal("token budgets drifted from the documented values")
	}
}
