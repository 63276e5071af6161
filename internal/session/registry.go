// Package session owns the session-scoped filesystem objects: the watcher
// socket endpoint, the PID marker, and the guard marker. All marker access
// funnels through the Registry; nothing else in the tree touches these
// files directly. The markers are advisory; correctness never depends on
// them, only on the hook clients' fallback path staying available.
package session

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// dirPerm is the permission for session state directories.
const dirPerm = 0750

// stateDirEnv overrides the root state directory.
const stateDirEnv = "HOOKWATCH_STATE_DIR"

// validSessionID rejects IDs that could escape the state directory.
var validSessionID = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// DefaultStateDir returns the root directory for session state:
// $HOOKWATCH_STATE_DIR, or ~/.hookwatch.
func DefaultStateDir() string {
	if dir := os.Getenv(stateDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hookwatch"
	}
	return filepath.Join(home, ".hookwatch")
}

// Registry locates and manages one session's on-disk objects.
type Registry struct {
	stateDir string
	id       string

	// spawn starts a detached watcher and returns its PID. Replaceable in
	// tests; the default re-execs this binary.
	spawn func(transcriptPath string) (int, error)
}

// NewRegistry creates a registry for the given session. An empty stateDir
// uses DefaultStateDir. Session IDs with path-unsafe characters are
// replaced by "default".
func NewRegistry(stateDir, sessionID string) *Registry {
	if stateDir == "" {
		stateDir = DefaultStateDir()
	}
	if sessionID == "" || !validSessionID.MatchString(sessionID) {
		sessionID = "default"
	}
	r := &Registry{stateDir: stateDir, id: sessionID}
	r.spawn = r.spawnWatcher
	return r
}

// SessionID returns the session identifier.
func (r *Registry) SessionID() string { return r.id }

// Dir returns this session's state directory.
func (r *Registry) Dir() string {
	return filepath.Join(r.stateDir, "sessions", r.id)
}

// SocketPath returns the watcher's IPC endpoint path.
func (r *Registry) SocketPath() string { return filepath.Join(r.Dir(), "watcher.sock") }

// PIDPath returns the PID marker path.
func (r *Registry) PIDPath() string { return filepath.Join(r.Dir(), "watcher.pid") }

// GuardPath returns the guard marker path.
func (r *Registry) GuardPath() string { return filepath.Join(r.Dir(), "watcher.guard") }

// LogPath returns the detached watcher's log file path.
func (r *Registry) LogPath() string { return filepath.Join(r.Dir(), "watcher.log") }

// IssueLogPath returns the session's durable issue log path.
func (r *Registry) IssueLogPath() string { return filepath.Join(r.Dir(), "issues.jsonl") }

// EnsureDir creates the session directory. Idempotent.
func (r *Registry) EnsureDir() error {
	if err := os.MkdirAll(r.Dir(), dirPerm); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	return nil
}

// WritePID records the current process as the session watcher. Called only
// by the watcher itself, after it owns the socket.
func (r *Registry) WritePID() error {
	return os.WriteFile(r.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0600)
}

// ReadPID returns the recorded watcher PID.
func (r *Registry) ReadPID() (int, error) {
	data, err := os.ReadFile(r.PIDPath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed PID marker: %w", err)
	}
	return pid, nil
}

// ClearPID removes the PID marker.
func (r *Registry) ClearPID() { _ = os.Remove(r.PIDPath()) }

// WriteGuard records that a watcher spawn was requested now. Written only
// by client-side spawn logic.
func (r *Registry) WriteGuard() error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	return os.WriteFile(r.GuardPath(), []byte(stamp+"\n"), 0600)
}

// GuardTime returns the recorded spawn timestamp.
func (r *Registry) GuardTime() (time.Time, error) {
	data, err := os.ReadFile(r.GuardPath())
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
}

// ClearGuard removes the guard marker.
func (r *Registry) ClearGuard() { _ = os.Remove(r.GuardPath()) }

// IsLive reports whether the recorded watcher process exists. Known
// limitation: a PID recycled by an unrelated process reads as live.
func (r *Registry) IsLive() bool {
	pid, err := r.ReadPID()
	if err != nil {
		return false
	}
	return processAlive(pid)
}

// spawnGrace is how long a guard without a PID marker is trusted. The
// spawned watcher needs a moment to bind and write its PID; treating that
// window as stale would unlink a just-bound socket and respawn.
const spawnGrace = 2 * time.Second

// EnsureSpawned guarantees a watcher has been asked to start for this
// session. With no guard marker it writes the guard and spawns. A guard
// with a live PID is a no-op, as is a young guard whose PID marker has not
// appeared yet. A guard with a dead PID, or an old guard with none, clears
// the stale markers and respawns. Guard existence alone never proves
// liveness.
func (r *Registry) EnsureSpawned(transcriptPath string) error {
	if err := r.EnsureDir(); err != nil {
		return err
	}

	if _, err := os.Stat(r.GuardPath()); err == nil {
		if r.IsLive() {
			return nil
		}
		if _, pidErr := os.Stat(r.PIDPath()); os.IsNotExist(pidErr) {
			if stamp, gErr := r.GuardTime(); gErr == nil && time.Since(stamp) < spawnGrace {
				// Spawn in flight; an event burst must not clear it.
				return nil
			}
		}
		// Stale: a watcher was asked to start but is gone.
		r.ClearGuard()
		r.ClearPID()
		_ = os.Remove(r.SocketPath())
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read guard marker: %w", err)
	}

	// Guard first: concurrent hook events during the spawn window see the
	// request already recorded.
	if err := r.WriteGuard(); err != nil {
		return err
	}
	if _, err := r.spawn(transcriptPath); err != nil {
		r.ClearGuard()
		return fmt.Errorf("spawn watcher: %w", err)
	}
	return nil
}

// MaxLogBytes is the size at which session log files rotate.
const MaxLogBytes = 10 << 20

// RotateIfLarge renames path to path+".1" once it reaches limit, replacing
// any previous archive. One archive generation keeps a session's logs
// bounded at roughly twice the limit.
func RotateIfLarge(path string, limit int64) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() < limit {
		return nil
	}
	return os.Rename(path, path+".1")
}

// spawnWatcher re-execs this binary as a detached background watcher.
func (r *Registry) spawnWatcher(transcriptPath string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}

	args := []string{"watch", "--session", r.id, "--state-dir", r.stateDir}
	if transcriptPath != "" {
		args = append(args, "--transcript", transcriptPath)
	}

	_ = RotateIfLarge(r.LogPath(), MaxLogBytes)
	logFile, err := os.OpenFile(r.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return 0, err
	}
	defer logFile.Close()

	cmd := exec.Command(exe, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// processAlive probes a PID with the null signal.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
