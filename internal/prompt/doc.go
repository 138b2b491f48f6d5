// Package prompt centralizes the chat templates, token budgets, and response
// post-processing shared by the daemon and the in-process fallback path.
package prompt
