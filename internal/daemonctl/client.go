package daemonctl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"alfred/internal/protocol"
)

// Timeouts for daemon conversations. The dial timeout is short so CLI
// commands fall back to in-process inference quickly when no daemon is
// around; the read timeout is long enough for a cold model load plus a slow
// generation.
const (
	DialTimeout  = 100 * time.Millisecond
	readTimeout  = 120 * time.Second
	writeTimeout = 5 * time.Second
)

// DaemonError is an error response from the daemon.
type DaemonError struct {
	Kind    string
	Message string
}

func (e *DaemonError) Error() string {
	return fmt.Sprintf("daemon: %s: %s", e.Kind, e.Message)
}

// IsShuttingDown reports whether err is the daemon refusing work mid-drain.
func IsShuttingDown(err error) bool {
	var daemonErr *DaemonError
	return errors.As(err, &daemonErr) && daemonErr.Kind == protocol.KindShuttingDown
}

// Client is a connection to the daemon. Not safe for concurrent use; the
// protocol is strictly request/response per connection.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	nextID  uint64
}

// Dial connects to addr and verifies the daemon with a ping.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	client := &Client{conn: conn, scanner: scanner}
	if _, err := client.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("verify daemon: %w", err)
	}
	return client, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(method string, params any) (string, error) {
	c.nextID++
	id := c.nextID

	var rawParams json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("encode params: %w", err)
		}
		rawParams = encoded
	}
	line, err := protocol.EncodeRequest(protocol.Request{
		Method: method,
		Params: rawParams,
		ID:     json.RawMessage(fmt.Sprintf("%d", id)),
	})
	if err != nil {
		return "", err
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return "", fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := c.conn.Write(line); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return "", fmt.Errorf("set read deadline: %w", err)
	}
	if !c.scanner.Scan() {
		if scanErr := c.scanner.Err(); scanErr != nil {
			return "", fmt.Errorf("read response: %w", scanErr)
		}
		return "", errors.New("daemon closed connection")
	}
	resp, err := protocol.DecodeResponse(c.scanner.Bytes())
	if err != nil {
		return "", err
	}

	var gotID uint64
	if err := json.Unmarshal(resp.ID, &gotID); err != nil || gotID != id {
		return "", fmt.Errorf("response id %s does not match request id %d", resp.ID, id)
	}
	if resp.Err != nil {
		return "", &DaemonError{Kind: resp.Err.Kind, Message: resp.Err.Message}
	}
	if resp.Result == nil {
		return "", errors.New("empty response from daemon")
	}
	return *resp.Result, nil
}

// Ping checks daemon liveness.
func (c *Client) Ping() (string, error) {
	return c.call(protocol.MethodPing, struct{}{})
}

// Shutdown asks the daemon to drain and exit.
func (c *Client) Shutdown() (string, error) {
	return c.call(protocol.MethodShutdown, struct{}{})
}

// Generate runs a raw prompt.
func (c *Client) Generate(prompt string, maxTokens int) (string, error) {
	return c.call(protocol.MethodGenerate, protocol.GenerateParams{Prompt: prompt, MaxTokens: maxTokens})
}

// GenerateCommitMessage produces a commit message from a staged diff.
func (c *Client) GenerateCommitMessage(diff string) (string, error) {
	return c.call(protocol.MethodGenerateCommitMessage, protocol.CommitMessageParams{Diff: diff})
}

// SuggestBranchName produces a branch name from a description.
func (c *Client) SuggestBranchName(description string) (string, error) {
	return c.call(protocol.MethodSuggestBranchName, protocol.BranchNameParams{Description: description})
}

// SuggestConflictResolution proposes a merge for one conflicted file.
func (c *Client) SuggestConflictResolution(file, ours, theirs, base string) (string, error) {
	return c.call(protocol.MethodSuggestConflictResolution, protocol.ConflictResolutionParams{
		File: file, Ours: ours, Theirs: theirs, Base: base,
	})
}

// SuggestRebaseStrategy proposes a plan for rebasing commits onto a base.
func (c *Client) SuggestRebaseStrategy(commits []string, onto string) (string, error) {
	return c.call(protocol.MethodSuggestRebaseStrategy, protocol.RebaseStrategyParams{Commits: commits, Onto: onto})
}
