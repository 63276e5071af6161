// Package watcher implements the long-lived session watcher: one process
// per session holding the issue queue, classifying assistant and tool
// activity with the shared rule engine, and serving hook clients over the
// session socket. The watcher is advisory infrastructure: it fails open
// everywhere and must never take the host tool down with it.
package watcher

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ppiankov/hookwatch/internal/ipc"
	"github.com/ppiankov/hookwatch/internal/rules"
	"github.com/ppiankov/hookwatch/internal/session"
)

// connDeadline bounds how long one connection may take to deliver its
// single message. A hung client costs one goroutine for this long, nothing
// more.
const connDeadline = 2 * time.Second

// idleDefault is how long the watcher lingers with no activity before
// exiting on its own.
const idleDefault = 4 * time.Hour

// Config holds watcher configuration.
type Config struct {
	Registry     *session.Registry
	Transcript   string        // transcript path for out-of-band reads; may be empty
	Engine       *rules.Engine // defaults to rules.Default()
	IdleTimeout  time.Duration // 0 means idleDefault; negative means never
	PollMode     bool          // force polling instead of fsnotify for the tailer
	PollInterval time.Duration
}

// Watcher holds one session's issue queue and serves IPC queries.
type Watcher struct {
	cfg Config

	mu    sync.Mutex
	queue []rules.Issue

	// lastText is the most recent transcript text already classified, so
	// tailer sweeps and stop notifies do not double-report one response.
	lastText string

	lastActivity atomic.Int64 // unix nanos
}

// New creates a watcher with validated configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if cfg.Engine == nil {
		cfg.Engine = rules.Default()
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = idleDefault
	}
	w := &Watcher{cfg: cfg}
	w.touch()
	return w, nil
}

// Run binds the session socket and serves until ctx is cancelled, the idle
// timeout fires, or right away when another watcher already owns the
// socket. A bind conflict against a live watcher is the normal
// single-instance outcome, not an error.
func (w *Watcher) Run(ctx context.Context) error {
	reg := w.cfg.Registry
	if err := reg.EnsureDir(); err != nil {
		return err
	}

	ln, err := w.bind()
	if err != nil {
		return err
	}
	if ln == nil {
		// Another watcher is live on this session. Normal; stand down.
		return nil
	}
	defer ln.Close()
	defer os.Remove(reg.SocketPath())

	if err := reg.WritePID(); err != nil {
		ln.Close()
		return fmt.Errorf("write PID marker: %w", err)
	}
	defer reg.ClearPID()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	// Transcript tailer: classify appended assistant text out-of-band.
	if w.cfg.Transcript != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runTailer(ctx)
		}()
	}

	// Idle sweeper.
	if w.cfg.IdleTimeout > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runIdleSweeper(ctx, cancel)
		}()
	}

	// Unblock Accept on shutdown.
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				wg.Wait()
				return nil
			}
			fmt.Fprintf(os.Stderr, "hookwatch: accept: %v\n", err)
			continue
		}
		// One goroutine per connection; a slow or hung client never blocks
		// the accept loop or other clients.
		go w.handleConn(conn)
	}
}

// bind listens on the session socket. Returns (nil, nil) when a live
// watcher already owns the address; recovers a stale socket file left by a
// crashed one.
func (w *Watcher) bind() (net.Listener, error) {
	sock := w.cfg.Registry.SocketPath()

	ln, err := net.Listen("unix", sock)
	if err == nil {
		return ln, nil
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		return nil, fmt.Errorf("bind %s: %w", sock, err)
	}

	// Address in use: either a live watcher or a crashed one's leftover
	// socket file. A connect attempt tells them apart.
	if conn, dialErr := net.DialTimeout("unix", sock, ipc.DefaultTimeout); dialErr == nil {
		conn.Close()
		return nil, nil
	}

	_ = os.Remove(sock)
	ln, err = net.Listen("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("bind %s after stale socket cleanup: %w", sock, err)
	}
	return ln, nil
}

// handleConn services one connection: read one newline-terminated JSON
// message, act on it, reply only to queries. Abrupt disconnects and junk
// input are tolerated silently.
func (w *Watcher) handleConn(conn net.Conn) {
	defer conn.Close()
	w.touch()

	_ = conn.SetDeadline(time.Now().Add(connDeadline))

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return
	}

	var msg ipc.Message
	if json.Unmarshal(line, &msg) != nil {
		return
	}

	switch msg.Cmd {
	case ipc.CmdHook:
		w.handleNotify(msg)
	case ipc.CmdGetPending:
		// Final out-of-band scan so a query racing its own stop notify
		// still sees the finished response. lastText dedup keeps each
		// response reported at most once.
		w.scanTranscript()
		pending := w.Drain()
		_ = json.NewEncoder(conn).Encode(pending)
	}
}

// handleNotify dispatches a hook notification through the event table.
// Classification failures are contained here: the event is dropped and the
// watcher keeps serving (fail open).
func (w *Watcher) handleNotify(msg ipc.Message) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "hookwatch: classify %q: %v\n", msg.Hook, r)
		}
	}()

	kind := KindOf(msg.Hook)
	handler, ok := kindHandlers[kind]
	if !ok {
		return
	}
	handler(w, msg)
}

// Append adds issues to the queue in detection order and records them in
// the durable issue log. Draining removes issues from the queue only; the
// log keeps the session's history.
func (w *Watcher) Append(issues []rules.Issue) {
	if len(issues) == 0 {
		return
	}
	w.mu.Lock()
	w.queue = append(w.queue, issues...)
	w.mu.Unlock()

	w.logIssues(issues)
}

// Drain atomically swaps the queue for an empty one and returns the
// previous contents. An issue is delivered at most once.
func (w *Watcher) Drain() ipc.Pending {
	w.mu.Lock()
	q := w.queue
	w.queue = nil
	w.mu.Unlock()

	if q == nil {
		q = []rules.Issue{}
	}
	return ipc.Pending{HasIssues: len(q) > 0, Issues: q}
}

// touch records activity for the idle sweeper.
func (w *Watcher) touch() {
	w.lastActivity.Store(time.Now().UnixNano())
}

// runIdleSweeper exits the watcher after a quiet period. The session's
// lifetime ends with the host tool, but nothing tells the watcher so; this
// keeps orphans from outliving their session forever.
func (w *Watcher) runIdleSweeper(ctx context.Context, cancel context.CancelFunc) {
	interval := w.cfg.IdleTimeout / 10
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, w.lastActivity.Load())
			if time.Since(last) > w.cfg.IdleTimeout {
				fmt.Fprintf(os.Stderr, "hookwatch: idle for %s, shutting down\n", w.cfg.IdleTimeout)
				cancel()
				return
			}
		}
	}
}
