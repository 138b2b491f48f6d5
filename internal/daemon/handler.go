package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/google/uuid"

	"alfred/internal/llm"
	"alfred/internal/logging"
	"alfred/internal/model"
	"alfred/internal/prompt"
	"alfred/internal/protocol"
)

// handleConn serves one client connection: read a line, dispatch, write the
// response, strictly in order. A transport error tears down only this
// connection.
func (d *Daemon) handleConn(conn net.Conn) {
	defer d.dropConn(conn)

	connID := uuid.NewString()[:8]
	logger := d.logger.With(logging.String(logging.FieldConnID, connID))
	logger.Debug("connection opened")
	defer logger.Debug("connection closed")

	reader := protocol.NewReader(conn)
	writer := protocol.NewWriter(conn)

	for {
		req, id, err := reader.Read()
		if err != nil {
			switch {
			case err == io.EOF || isClosedConn(err):
				return
			case errors.Is(err, protocol.ErrMalformed):
				logger.Debug("malformed request, closing connection")
				return
			case len(id) > 0:
				// Parse failed but the id survived; answer it.
				if writeErr := writer.Write(protocol.Fail(id, protocol.KindParseError, err.Error())); writeErr != nil {
					return
				}
				continue
			default:
				logger.Debug("read failed", logging.Error(err))
				return
			}
		}

		if !d.beginRequest() {
			if writeErr := writer.Write(protocol.Fail(id, protocol.KindShuttingDown, "daemon is shutting down")); writeErr != nil {
				return
			}
			continue
		}

		resp := d.dispatch(d.baseCtx, req, logger)
		writeErr := writer.Write(resp)
		d.recordActivity()
		d.inflight.Done()
		if writeErr != nil {
			logger.Debug("write failed", logging.Error(writeErr))
			return
		}

		// The shutdown acknowledgement goes out before draining begins.
		if req.Method == protocol.MethodShutdown && resp.Err == nil {
			d.Shutdown("shutdown request")
		}
	}
}

func (d *Daemon) dispatch(ctx context.Context, req protocol.Request, logger *slog.Logger) protocol.Response {
	logger.Debug("request", logging.String(logging.FieldMethod, req.Method))

	switch req.Method {
	case protocol.MethodPing:
		return protocol.OK(req.ID, "pong")

	case protocol.MethodShutdown:
		return protocol.OK(req.ID, "shutting_down")

	case protocol.MethodGenerate:
		var params protocol.GenerateParams
		if resp, ok := decodeParams(req, &params); !ok {
			return resp
		}
		if strings.TrimSpace(params.Prompt) == "" {
			return invalidParams(req.ID, "prompt")
		}
		maxTokens := params.MaxTokens
		if maxTokens <= 0 {
			maxTokens = d.cfg.Generation.MaxTokens
		}
		return d.infer(ctx, req.ID, params.Prompt, maxTokens, nil)

	case protocol.MethodGenerateCommitMessage:
		var params protocol.CommitMessageParams
		if resp, ok := decodeParams(req, &params); !ok {
			return resp
		}
		if strings.TrimSpace(params.Diff) == "" {
			return invalidParams(req.ID, "diff")
		}
		return d.infer(ctx, req.ID, prompt.CommitMessage(params.Diff), prompt.CommitMessageTokens, prompt.FirstLine)

	case protocol.MethodSuggestBranchName:
		var params protocol.BranchNameParams
		if resp, ok := decodeParams(req, &params); !ok {
			return resp
		}
		if strings.TrimSpace(params.Description) == "" {
			return invalidParams(req.ID, "description")
		}
		return d.infer(ctx, req.ID, prompt.BranchName(params.Description), prompt.BranchNameTokens, prompt.CleanBranchName)

	case protocol.MethodSuggestConflictResolution:
		var params protocol.ConflictResolutionParams
		if resp, ok := decodeParams(req, &params); !ok {
			return resp
		}
		for _, field := range []struct {
			name  string
			value string
		}{
			{"file", params.File},
			{"ours", params.Ours},
			{"theirs", params.Theirs},
		} {
			if strings.TrimSpace(field.value) == "" {
				return invalidParams(req.ID, field.name)
			}
		}
		p := prompt.ConflictResolution(params.File, params.Ours, params.Theirs, params.Base)
		return d.infer(ctx, req.ID, p, prompt.ConflictResolutionTokens, strings.TrimSpace)

	case protocol.MethodSuggestRebaseStrategy:
		var params protocol.RebaseStrategyParams
		if resp, ok := decodeParams(req, &params); !ok {
			return resp
		}
		if len(params.Commits) == 0 {
			return invalidParams(req.ID, "commits")
		}
		if strings.TrimSpace(params.Onto) == "" {
			return invalidParams(req.ID, "onto")
		}
		p := prompt.RebaseStrategy(params.Commits, params.Onto)
		return d.infer(ctx, req.ID, p, prompt.RebaseStrategyTokens, strings.TrimSpace)

	default:
		return protocol.Fail(req.ID, protocol.KindMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

// infer runs one generation and maps failures onto wire error kinds. clean
// post-processes the raw model output when non-nil.
func (d *Daemon) infer(ctx context.Context, id json.RawMessage, p string, maxTokens int, clean func(string) string) protocol.Response {
	text, err := d.resource.Infer(ctx, p, maxTokens)
	if err != nil {
		switch {
		case model.IsLoadError(err) || llm.IsEngineUnavailable(err):
			return protocol.Fail(id, protocol.KindModelLoadFailed, err.Error())
		default:
			return protocol.Fail(id, protocol.KindInferenceError, err.Error())
		}
	}
	if clean != nil {
		text = clean(text)
	}
	return protocol.OK(id, text)
}

func decodeParams(req protocol.Request, dst any) (protocol.Response, bool) {
	if len(req.Params) == 0 {
		return protocol.Fail(req.ID, protocol.KindInvalidParams, "missing params"), false
	}
	if err := json.Unmarshal(req.Params, dst); err != nil {
		return protocol.Fail(req.ID, protocol.KindInvalidParams, fmt.Sprintf("bad params: %v", err)), false
	}
	return protocol.Response{}, true
}

func invalidParams(id json.RawMessage, field string) protocol.Response {
	return protocol.Fail(id, protocol.KindInvalidParams, fmt.Sprintf("missing or empty field %q", field))
}
