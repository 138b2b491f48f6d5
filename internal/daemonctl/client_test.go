package daemonctl_test

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"alfred/internal/daemonctl"
	"alfred/internal/protocol"
	"alfred/internal/testsupport"
)

// stubServer speaks just enough of the line protocol for client tests.
type stubServer struct {
	listener net.Listener
	// mangleID makes the server echo a wrong response id.
	mangleID bool
}

func newStubServer(t *testing.T) *stubServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &stubServer{listener: listener}
	t.Cleanup(func() { listener.Close() })
	go s.serve()
	return s
}

func (s *stubServer) addr() string { return s.listener.Addr().String() }

func (s *stubServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *stubServer) handle(conn net.Conn) {
	defer conn.Close()
	reader := protocol.NewReader(conn)
	writer := protocol.NewWriter(conn)
	for {
		req, id, err := reader.Read()
		if err != nil {
			return
		}
		if s.mangleID {
			id = json.RawMessage("999999")
		}
		var resp protocol.Response
		switch req.Method {
		case protocol.MethodPing:
			resp = protocol.OK(id, "pong")
		case protocol.MethodGenerate:
			var params protocol.GenerateParams
			if err := json.Unmarshal(req.Params, &params); err != nil {
				resp = protocol.Fail(id, protocol.KindInvalidParams, err.Error())
			} else {
				resp = protocol.OK(id, "echo: "+params.Prompt)
			}
		case protocol.MethodShutdown:
			resp = protocol.Fail(id, protocol.KindShuttingDown, "daemon is shutting down")
		default:
			resp = protocol.Fail(id, protocol.KindMethodNotFound, "unknown method")
		}
		if err := writer.Write(resp); err != nil {
			return
		}
	}
}

func TestDialVerifiesWithPing(t *testing.T) {
	server := newStubServer(t)

	client, err := daemonctl.Dial(server.addr())
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	defer client.Close()
}

func TestDialFailsWhenNothingListens(t *testing.T) {
	// Bind and immediately close to get a dead port.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	if _, err := daemonctl.Dial(addr); err == nil {
		t.Fatal("expected dial failure on closed port")
	}
}

func TestGenerateRoundTrip(t *testing.T) {
	server := newStubServer(t)
	client, err := daemonctl.Dial(server.addr())
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	defer client.Close()

	result, err := client.Generate("hello", 64)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if result != "echo: hello" {
		t.Fatalf("result = %q", result)
	}
}

func TestDaemonErrorSurfacesKind(t *testing.T) {
	server := newStubServer(t)
	client, err := daemonctl.Dial(server.addr())
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	defer client.Close()

	_, err = client.Shutdown()
	var daemonErr *daemonctl.DaemonError
	if !errors.As(err, &daemonErr) {
		t.Fatalf("err = %v, want DaemonError", err)
	}
	if daemonErr.Kind != protocol.KindShuttingDown {
		t.Fatalf("kind = %q", daemonErr.Kind)
	}
	if !daemonctl.IsShuttingDown(err) {
		t.Fatal("IsShuttingDown = false")
	}
}

func TestMismatchedResponseIDRejected(t *testing.T) {
	server := newStubServer(t)
	server.mangleID = false

	client, err := daemonctl.Dial(server.addr())
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	defer client.Close()

	server.mangleID = true
	if _, err := client.Ping(); err == nil {
		t.Fatal("expected id mismatch error")
	}
}

func TestStatusReportsDeadDaemonAsStopped(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	// Stale record from a pid that cannot be alive.
	record := `{"pid":4194304,"started_at":"2026-01-01T00:00:00Z","port":7654}`
	if err := os.WriteFile(cfg.PIDFilePath(), []byte(record), 0o644); err != nil {
		t.Fatalf("write pid record: %v", err)
	}

	info := daemonctl.Status(cfg)
	if info.Running {
		t.Fatal("dead pid reported running")
	}
}

func TestStatusReportsLiveDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	record := struct {
		PID       int       `json:"pid"`
		StartedAt time.Time `json:"started_at"`
		Port      int       `json:"port"`
	}{PID: os.Getpid(), StartedAt: time.Now().UTC(), Port: 7654}
	encoded, _ := json.Marshal(record)
	if err := os.WriteFile(cfg.PIDFilePath(), encoded, 0o644); err != nil {
		t.Fatalf("write pid record: %v", err)
	}

	info := daemonctl.Status(cfg)
	if !info.Running {
		t.Fatal("live pid reported stopped")
	}
	if info.PID != os.Getpid() || info.Port != 7654 {
		t.Fatalf("info = %+v", info)
	}
}

func TestStatusWithoutRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	info := daemonctl.Status(cfg)
	if info.Running {
		t.Fatal("missing record reported running")
	}
	if info.IdleTimeoutMinutes != cfg.Daemon.IdleTimeoutMinutes {
		t.Fatalf("idle timeout = %d", info.IdleTimeoutMinutes)
	}
}
