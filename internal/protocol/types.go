package protocol

import "encoding/json"

// Method names understood by the daemon.
const (
	MethodPing                      = "ping"
	MethodShutdown                  = "shutdown"
	MethodGenerate                  = "generate"
	MethodGenerateCommitMessage     = "generate_commit_message"
	MethodSuggestBranchName         = "suggest_branch_name"
	MethodSuggestConflictResolution = "suggest_conflict_resolution"
	MethodSuggestRebaseStrategy     = "suggest_rebase_strategy"
)

// Error kinds carried in response error objects.
const (
	KindParseError      = "ParseError"
	KindMethodNotFound  = "MethodNotFound"
	KindInvalidParams   = "InvalidParams"
	KindModelLoadFailed = "ModelLoadFailed"
	KindInferenceError  = "InferenceError"
	KindShuttingDown    = "ShuttingDown"
)

// Request is one newline-delimited JSON request. The id is kept raw so any
// JSON token the client sent is echoed back untouched.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	ID     json.RawMessage `json:"id"`
}

// Error describes a failed request.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Response is one newline-delimited JSON response. Exactly one of Result and
// Err is set.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result *string         `json:"result,omitempty"`
	Err    *Error          `json:"error,omitempty"`
}

// OK builds a success response.
func OK(id json.RawMessage, result string) Response {
	return Response{ID: id, Result: &result}
}

// Fail builds an error response.
func Fail(id json.RawMessage, kind, message string) Response {
	return Response{ID: id, Err: &Error{Kind: kind, Message: message}}
}

// GenerateParams carries a raw generation request.
type GenerateParams struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// CommitMessageParams carries a staged diff.
type CommitMessageParams struct {
	Diff string `json:"diff"`
}

// BranchNameParams carries a branch description.
type BranchNameParams struct {
	Description string `json:"description"`
}

// ConflictResolutionParams carries one conflicted file's stages.
type ConflictResolutionParams struct {
	File   string `json:"file"`
	Ours   string `json:"ours"`
	Theirs string `json:"theirs"`
	Base   string `json:"base,omitempty"`
}

// RebaseStrategyParams carries the commits to be rebased and the target.
type RebaseStrategyParams struct {
	Commits []string `json:"commits"`
	Onto    string   `json:"onto"`
}
