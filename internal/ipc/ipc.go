// Package ipc implements the wire protocol between hook clients and the
// session watcher: a unix stream socket carrying exactly one
// newline-terminated JSON object per connection. Notify connections are
// write-only and close without a reply; query connections write one request
// and read one reply. Every client-side operation carries a short deadline,
// and any failure is reported as ErrUnreachable, so callers treat the watcher
// as absent and fall back, never block.
package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/ppiankov/hookwatch/internal/rules"
)

// DefaultTimeout bounds a full client-side exchange (dial + write + read).
const DefaultTimeout = 250 * time.Millisecond

// ErrUnreachable wraps every transport-level failure: missing endpoint,
// refused connection, timeout. Callers branch with errors.Is and treat all
// of them as "no watcher".
var ErrUnreachable = errors.New("watcher unreachable")

// Protocol commands.
const (
	CmdHook       = "hook"
	CmdGetPending = "get_pending"
)

// Message is the single request envelope. Notify messages carry hook/tool/
// result; queries carry only the command.
type Message struct {
	Cmd    string `json:"cmd"`
	Hook   string `json:"hook,omitempty"`
	Tool   string `json:"tool,omitempty"`
	Result string `json:"result,omitempty"`
}

// Pending is the reply to a get_pending query.
type Pending struct {
	HasIssues bool          `json:"has_issues"`
	Issues    []rules.Issue `json:"issues"`
}

// SendNotify delivers a fire-and-forget hook notification. The call is
// fallible by design: callers decide, visibly, to discard the error.
func SendNotify(socketPath string, hook, tool, result string, timeout time.Duration) error {
	conn, err := dial(socketPath, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	msg := Message{Cmd: CmdHook, Hook: hook, Tool: tool, Result: result}
	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return fmt.Errorf("%w: write notify: %v", ErrUnreachable, err)
	}
	return nil
}

// QueryPending asks the watcher to drain and return its issue queue.
func QueryPending(socketPath string, timeout time.Duration) (Pending, error) {
	conn, err := dial(socketPath, timeout)
	if err != nil {
		return Pending{}, err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(Message{Cmd: CmdGetPending}); err != nil {
		return Pending{}, fmt.Errorf("%w: write query: %v", ErrUnreachable, err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return Pending{}, fmt.Errorf("%w: read reply: %v", ErrUnreachable, err)
	}

	var p Pending
	if err := json.Unmarshal(line, &p); err != nil {
		return Pending{}, fmt.Errorf("%w: decode reply: %v", ErrUnreachable, err)
	}
	return p, nil
}

// dial connects to the watcher socket with a full-exchange deadline. When
// the socket file does not exist at all, no connection is attempted.
func dial(socketPath string, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if _, err := os.Stat(socketPath); err != nil {
		return nil, fmt.Errorf("%w: no endpoint at %s", ErrUnreachable, socketPath)
	}

	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", ErrUnreachable, err)
	}

	// One deadline covers the whole exchange, not per-operation resets.
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: deadline: %v", ErrUnreachable, err)
	}
	return conn, nil
}
