package daemon_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"alfred/internal/config"
	"alfred/internal/daemon"
	"alfred/internal/llm"
	"alfred/internal/logging"
	"alfred/internal/model"
	"alfred/internal/protocol"
	"alfred/internal/testsupport"
)

type fakeEngine struct {
	loadErr  error
	response string
}

func (f *fakeEngine) Load(context.Context, string) error { return f.loadErr }

func (f *fakeEngine) Generate(_ context.Context, prompt string, _ llm.Params) (string, error) {
	if f.response != "" {
		return f.response, nil
	}
	return "generated", nil
}

func (f *fakeEngine) Close() error { return nil }

type testDaemon struct {
	daemon *daemon.Daemon
	cancel context.CancelFunc
	runErr chan error
}

func startDaemon(t *testing.T, cfg *config.Config, engine llm.Engine) *testDaemon {
	t.Helper()

	resource := model.NewResource(engine, cfg.ModelPath, llm.Params{MaxTokens: 32}, logging.NewNop())
	d := daemon.New(cfg, resource, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		runErr <- d.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for d.State() < daemon.StateListening {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("daemon never reached listening state")
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not terminate")
		}
	})
	return &testDaemon{daemon: d, cancel: cancel, runErr: runErr}
}

func (td *testDaemon) dial(t *testing.T) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", td.daemon.Port()))
	if err != nil {
		t.Fatalf("dial daemon: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn net.Conn, line string) protocol.Response {
	t.Helper()
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		t.Fatalf("write request: %v", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	if !scanner.Scan() {
		t.Fatalf("no response: %v", scanner.Err())
	}
	resp, err := protocol.DecodeResponse(scanner.Bytes())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestPingPong(t *testing.T) {
	td := startDaemon(t, testsupport.NewConfig(t), &fakeEngine{})
	conn := td.dial(t)

	resp := roundTrip(t, conn, `{"method":"ping","id":1}`)
	if resp.Result == nil || *resp.Result != "pong" {
		t.Fatalf("response = %+v, want pong", resp)
	}
	if string(resp.ID) != "1" {
		t.Fatalf("id = %s, want 1", resp.ID)
	}
}

func TestGenerateEndToEnd(t *testing.T) {
	td := startDaemon(t, testsupport.NewConfig(t), &fakeEngine{response: "hello world"})
	conn := td.dial(t)

	resp := roundTrip(t, conn, `{"method":"generate","params":{"prompt":"say hi"},"id":2}`)
	if resp.Err != nil {
		t.Fatalf("unexpected error: %+v", resp.Err)
	}
	if *resp.Result != "hello world" {
		t.Fatalf("result = %q", *resp.Result)
	}
}

func TestCommitMessageTrimsToFirstLine(t *testing.T) {
	engine := &fakeEngine{response: "feat: add parser\n\nThis adds a parser."}
	td := startDaemon(t, testsupport.NewConfig(t), engine)
	conn := td.dial(t)

	resp := roundTrip(t, conn, `{"method":"generate_commit_message","params":{"diff":"diff --git a b"},"id":3}`)
	if resp.Err != nil {
		t.Fatalf("unexpected error: %+v", resp.Err)
	}
	if *resp.Result != "feat: add parser" {
		t.Fatalf("result = %q, want first line only", *resp.Result)
	}
}

func TestBranchNameIsSlugged(t *testing.T) {
	engine := &fakeEngine{response: "\"feature/Add Login Page\"\n"}
	td := startDaemon(t, testsupport.NewConfig(t), engine)
	conn := td.dial(t)

	resp := roundTrip(t, conn, `{"method":"suggest_branch_name","params":{"description":"login page"},"id":4}`)
	if resp.Err != nil {
		t.Fatalf("unexpected error: %+v", resp.Err)
	}
	if *resp.Result != "feature/add-login-page" {
		t.Fatalf("result = %q", *resp.Result)
	}
}

func TestUnknownMethodKeepsConnectionOpen(t *testing.T) {
	td := startDaemon(t, testsupport.NewConfig(t), &fakeEngine{})
	conn := td.dial(t)

	resp := roundTrip(t, conn, `{"method":"frobnicate","id":5}`)
	if resp.Err == nil || resp.Err.Kind != protocol.KindMethodNotFound {
		t.Fatalf("response = %+v, want MethodNotFound", resp)
	}

	// Same connection still serves requests.
	resp = roundTrip(t, conn, `{"method":"ping","id":6}`)
	if resp.Result == nil || *resp.Result != "pong" {
		t.Fatalf("connection unusable after unknown method: %+v", resp)
	}
}

func TestInvalidParamsNamesField(t *testing.T) {
	td := startDaemon(t, testsupport.NewConfig(t), &fakeEngine{})
	conn := td.dial(t)

	resp := roundTrip(t, conn, `{"method":"generate_commit_message","params":{"diff":""},"id":7}`)
	if resp.Err == nil || resp.Err.Kind != protocol.KindInvalidParams {
		t.Fatalf("response = %+v, want InvalidParams", resp)
	}
	if want := `"diff"`; !strings.Contains(resp.Err.Message, want) {
		t.Fatalf("message %q does not name the field", resp.Err.Message)
	}
}

func TestParseErrorWithRecoverableID(t *testing.T) {
	td := startDaemon(t, testsupport.NewConfig(t), &fakeEngine{})
	conn := td.dial(t)

	resp := roundTrip(t, conn, `{"method":42,"id":"req-9"}`)
	if resp.Err == nil || resp.Err.Kind != protocol.KindParseError {
		t.Fatalf("response = %+v, want ParseError", resp)
	}
	if string(resp.ID) != `"req-9"` {
		t.Fatalf("id = %s, want \"req-9\"", resp.ID)
	}
}

func TestMalformedLineClosesConnection(t *testing.T) {
	td := startDaemon(t, testsupport.NewConfig(t), &fakeEngine{})
	conn := td.dial(t)

	if _, err := fmt.Fprint(conn, "this is not json\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected connection close, got data")
	}
}

func TestRequestWithoutIDClosesConnection(t *testing.T) {
	td := startDaemon(t, testsupport.NewConfig(t), &fakeEngine{})
	conn := td.dial(t)

	// A valid method with no id has nothing to address a response to.
	if _, err := fmt.Fprint(conn, `{"method":"ping"}`+"\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected connection close, got data")
	}
}

func TestModelLoadFailureMapsToWireError(t *testing.T) {
	engine := &fakeEngine{loadErr: errors.New("gguf header corrupt")}
	td := startDaemon(t, testsupport.NewConfig(t), engine)
	conn := td.dial(t)

	resp := roundTrip(t, conn, `{"method":"generate","params":{"prompt":"hi"},"id":8}`)
	if resp.Err == nil || resp.Err.Kind != protocol.KindModelLoadFailed {
		t.Fatalf("response = %+v, want ModelLoadFailed", resp)
	}

	// Ping still works; the daemon survives a failed load.
	resp = roundTrip(t, conn, `{"method":"ping","id":9}`)
	if resp.Result == nil || *resp.Result != "pong" {
		t.Fatalf("ping after load failure: %+v", resp)
	}
}

func TestShutdownRPCAcknowledgesThenTerminates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	td := startDaemon(t, cfg, &fakeEngine{})
	conn := td.dial(t)

	resp := roundTrip(t, conn, `{"method":"shutdown","id":10}`)
	if resp.Result == nil || *resp.Result != "shutting_down" {
		t.Fatalf("response = %+v, want shutting_down", resp)
	}

	select {
	case <-td.daemon.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not terminate after shutdown rpc")
	}
	if _, err := os.Stat(cfg.PIDFilePath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("pid record still present after termination: %v", err)
	}
	if state := td.daemon.State(); state != daemon.StateTerminated {
		t.Fatalf("state = %v, want terminated", state)
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	startDaemon(t, cfg, &fakeEngine{})

	resource := model.NewResource(&fakeEngine{}, cfg.ModelPath, llm.Params{}, logging.NewNop())
	second := daemon.New(cfg, resource, logging.NewNop())
	err := second.Run(context.Background())
	if !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
}

func TestSignalTriggersCleanShutdown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	td := startDaemon(t, cfg, &fakeEngine{})

	td.cancel()
	select {
	case err := <-td.runErr:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not exit on context cancel")
	}
}

func TestShutdownDuringActiveTraffic(t *testing.T) {
	td := startDaemon(t, testsupport.NewConfig(t), &fakeEngine{})

	// Hammer the daemon from several connections while shutdown lands in
	// the middle; a new request arriving just as the drain wait starts
	// must not crash the process.
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", td.daemon.Port()))
			if err != nil {
				return
			}
			defer conn.Close()
			scanner := bufio.NewScanner(conn)
			for n := 0; ; n++ {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := fmt.Fprintf(conn, `{"method":"ping","id":%d}`+"\n", worker*100000+n); err != nil {
					return
				}
				if !scanner.Scan() {
					return
				}
			}
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	td.daemon.Shutdown("load test")

	select {
	case <-td.daemon.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not terminate under load")
	}
	close(stop)
	wg.Wait()
}

func TestResponsesStayInOrder(t *testing.T) {
	td := startDaemon(t, testsupport.NewConfig(t), &fakeEngine{response: "ok"})
	conn := td.dial(t)

	for i := 0; i < 5; i++ {
		if _, err := fmt.Fprintf(conn, `{"method":"ping","id":%d}`+"\n", i); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	scanner := bufio.NewScanner(conn)
	for i := 0; i < 5; i++ {
		if !scanner.Scan() {
			t.Fatalf("missing response %d: %v", i, scanner.Err())
		}
		resp, err := protocol.DecodeResponse(scanner.Bytes())
		if err != nil {
			t.Fatalf("decode response %d: %v", i, err)
		}
		var id int
		if err := json.Unmarshal(resp.ID, &id); err != nil || id != i {
			t.Fatalf("response %d carried id %s", i, resp.ID)
		}
	}
}
