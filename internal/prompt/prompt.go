package prompt

import (
	"fmt"
	"strings"
)

// Token budgets per request type. Raw generate requests use the configured
// default instead.
const (
	CommitMessageTokens      = 100
	BranchNameTokens         = 30
	ConflictResolutionTokens = 500
	RebaseStrategyTokens     = 200
)

// Input truncation limits keep prompts inside the model's context window.
const (
	maxDiffChars         = 4000
	maxConflictPartChars = 2000
)

// chat renders the phi-3 chat template the model was tuned on.
func chat(system, user string) string {
	return fmt.Sprintf("<|system|>\n%s<|end|>\n<|user|>\n%s<|end|>\n<|assistant|>", system, user)
}

// CommitMessage builds the prompt for a commit message from a staged diff.
func CommitMessage(diff string) string {
	system := strings.Join([]string{
		"You are a helpful assistant that generates concise, conventional git commit messages.",
		"Follow the conventional commits format: type(scope): description",
		"Types: feat, fix, docs, style, refactor, test, chore",
		"Keep the first line under 72 characters.",
		"Only output the commit message, nothing else.",
	}, "\n")
	user := fmt.Sprintf("Generate a commit message for this diff:\n\n%s", truncate(diff, maxDiffChars))
	return chat(system, user)
}

// BranchName builds the prompt for a branch name suggestion.
func BranchName(description string) string {
	system := strings.Join([]string{
		"You are a helpful assistant that suggests git branch names.",
		"Follow conventions: feature/, bugfix/, hotfix/, chore/",
		"Use kebab-case, keep it short but descriptive.",
		"Only output the branch name, nothing else.",
	}, "\n")
	user := fmt.Sprintf("Suggest a branch name for: %s", description)
	return chat(system, user)
}

// ConflictResolution builds the prompt for resolving one conflicted file.
func ConflictResolution(file, ours, theirs, base string) string {
	system := strings.Join([]string{
		"You are a helpful assistant that resolves git merge conflicts.",
		"Analyze the conflict and provide a merged result that preserves the intent of both changes.",
		"Only output the resolved code, no explanations.",
	}, "\n")
	user := fmt.Sprintf(
		"Resolve this merge conflict in %s:\n\nBASE (original):\n%s\n\nOURS (current branch):\n%s\n\nTHEIRS (incoming branch):\n%s\n\nProvide the merged result:",
		file,
		truncate(base, maxConflictPartChars),
		truncate(ours, maxConflictPartChars),
		truncate(theirs, maxConflictPartChars),
	)
	return chat(system, user)
}

// RebaseStrategy builds the prompt for a rebase plan over commits onto a base.
func RebaseStrategy(commits []string, onto string) string {
	system := strings.Join([]string{
		"You are a helpful assistant that suggests git rebase strategies.",
		"Analyze the commits and suggest which ones to squash, reorder, or reword.",
		"Be concise and provide actionable suggestions.",
	}, "\n")
	user := fmt.Sprintf(
		"I'm rebasing these commits onto %s:\n\n%s\n\nSuggest a rebase strategy (squash, reorder, reword):",
		onto,
		strings.Join(commits, "\n"),
	)
	return chat(system, user)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
