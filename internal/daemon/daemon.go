package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"alfred/internal/config"
	"alfred/internal/logging"
	"alfred/internal/model"
)

// State describes the daemon lifecycle. Transitions only move forward.
type State int32

const (
	StateStarting State = iota
	StateListening
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Daemon owns the loopback listener, the model resource, and the shutdown
// path. One instance per process.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	resource *model.Resource

	pidFile  *PIDFile
	listener net.Listener
	port     int

	state        atomic.Int32
	startedAt    time.Time
	lastActivity atomic.Int64

	// inflightMu orders beginRequest against drain: Add never starts from
	// a zero counter while drain is waiting.
	inflightMu sync.Mutex
	inflight   sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	doneCh       chan struct{}

	// baseCtx covers dispatch work. It outlives the shutdown trigger so
	// in-flight requests can finish, and is cancelled when the drain
	// grace expires.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	// idleInterval is how often the idle monitor checks the clock.
	// Overridable in tests.
	idleInterval time.Duration
}

// New constructs an unstarted daemon.
func New(cfg *config.Config, resource *model.Resource, logger *slog.Logger) *Daemon {
	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		resource:     resource,
		conns:        make(map[net.Conn]struct{}),
		shutdownCh:   make(chan struct{}),
		doneCh:       make(chan struct{}),
		idleInterval: 30 * time.Second,
	}
	d.state.Store(int32(StateStarting))
	return d
}

// State returns the current lifecycle state.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

// Port returns the bound listen port. Valid once Run has passed startup;
// with daemon.port = 0 this is the kernel-assigned port.
func (d *Daemon) Port() int { return d.port }

// Run executes the full daemon lifecycle and blocks until termination.
// Cancelling ctx is equivalent to receiving a termination signal.
func (d *Daemon) Run(ctx context.Context) error {
	pidFile, err := AcquirePIDFile(d.cfg.PIDFilePath())
	if err != nil {
		return err
	}
	d.pidFile = pidFile

	listener, err := net.Listen("tcp", d.cfg.ListenAddr())
	if err != nil {
		releaseErr := pidFile.Release()
		if releaseErr != nil {
			d.logger.Warn("release pid file after failed bind", logging.Error(releaseErr))
		}
		return fmt.Errorf("bind %s: %w", d.cfg.ListenAddr(), err)
	}
	d.listener = listener
	d.port = listener.Addr().(*net.TCPAddr).Port

	d.baseCtx, d.baseCancel = context.WithCancel(context.Background())
	d.startedAt = time.Now()
	d.lastActivity.Store(d.startedAt.UnixNano())

	if err := pidFile.Write(PIDRecord{PID: os.Getpid(), StartedAt: d.startedAt.UTC(), Port: d.port}); err != nil {
		listener.Close()
		if releaseErr := pidFile.Release(); releaseErr != nil {
			d.logger.Warn("release pid file after failed record write", logging.Error(releaseErr))
		}
		return err
	}

	d.state.Store(int32(StateListening))
	d.logger.Info("listening",
		logging.Int(logging.FieldPort, d.port),
		logging.Int(logging.FieldPID, os.Getpid()),
		logging.Int("idle_timeout_minutes", d.cfg.Daemon.IdleTimeoutMinutes))

	go d.acceptLoop()
	if d.cfg.Daemon.IdleTimeoutMinutes > 0 {
		go d.idleLoop()
	}

	select {
	case <-ctx.Done():
		d.Shutdown("signal")
	case <-d.shutdownCh:
	}

	d.drain()
	d.terminate()
	return nil
}

// Shutdown initiates shutdown once. Safe to call from any goroutine and any
// number of times; later calls are no-ops.
func (d *Daemon) Shutdown(reason string) {
	d.shutdownOnce.Do(func() {
		d.state.Store(int32(StateDraining))
		d.logger.Info("shutdown requested", logging.String(logging.FieldReason, reason))
		close(d.shutdownCh)
	})
}

// Done is closed when the daemon has fully terminated.
func (d *Daemon) Done() <-chan struct{} { return d.doneCh }

func (d *Daemon) draining() bool {
	return d.State() >= StateDraining
}

// beginRequest registers a request with the drain accounting. It returns
// false once draining has started, in which case the caller must answer
// ShuttingDown instead of dispatching.
func (d *Daemon) beginRequest() bool {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	if d.draining() {
		return false
	}
	d.inflight.Add(1)
	return true
}

func (d *Daemon) acceptLoop() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			// Listener closed during drain.
			return
		}
		d.trackConn(conn)
		go d.handleConn(conn)
	}
}

func (d *Daemon) trackConn(conn net.Conn) {
	d.connMu.Lock()
	d.conns[conn] = struct{}{}
	d.connMu.Unlock()
}

func (d *Daemon) dropConn(conn net.Conn) {
	d.connMu.Lock()
	delete(d.conns, conn)
	d.connMu.Unlock()
	conn.Close()
}

func (d *Daemon) closeAllConns() {
	d.connMu.Lock()
	for conn := range d.conns {
		conn.Close()
	}
	d.conns = make(map[net.Conn]struct{})
	d.connMu.Unlock()
}

func (d *Daemon) recordActivity() {
	d.lastActivity.Store(time.Now().UnixNano())
}

// drain closes the listener, waits out in-flight requests within the
// configured grace, then severs whatever is left.
func (d *Daemon) drain() {
	d.listener.Close()

	// Barrier: state is already Draining here, so after this lock cycles
	// no handler can register new work. Everything registered before it
	// is visible to the wait below.
	d.inflightMu.Lock()
	d.inflightMu.Unlock() //nolint:staticcheck

	grace := time.Duration(d.cfg.Daemon.ShutdownGraceSeconds) * time.Second
	if waitTimeout(&d.inflight, grace) {
		d.logger.Debug("in-flight requests drained")
	} else {
		d.logger.Warn("drain grace expired with requests in flight",
			logging.Duration("grace", grace))
	}
	d.baseCancel()
	d.closeAllConns()
}

func (d *Daemon) terminate() {
	if err := d.resource.Close(); err != nil {
		d.logger.Warn("close model", logging.Error(err))
	}
	if err := d.pidFile.Release(); err != nil {
		d.logger.Warn("release pid file", logging.Error(err))
	}
	d.state.Store(int32(StateTerminated))
	d.logger.Info("terminated")
	close(d.doneCh)
}

// waitTimeout waits on wg for at most timeout. A zero timeout skips waiting.
func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// isClosedConn reports errors from reading a connection torn down locally.
func isClosedConn(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
