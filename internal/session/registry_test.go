package session

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(t.TempDir(), "sess-001")
}

// stubSpawn replaces the real spawner and counts invocations. It records
// the given PID as if a watcher had started.
func stubSpawn(t *testing.T, r *Registry, pid int, count *int) {
	t.Helper()
	r.spawn = func(string) (int, error) {
		*count++
		if err := os.WriteFile(r.PIDPath(), []byte(strconv.Itoa(pid)), 0600); err != nil {
			t.Fatal(err)
		}
		return pid, nil
	}
}

func TestRegistryPaths(t *testing.T) {
	r := NewRegistry("/state", "abc")
	if r.Dir() != filepath.Join("/state", "sessions", "abc") {
		t.Errorf("Dir = %s", r.Dir())
	}
	for _, p := range []string{r.SocketPath(), r.PIDPath(), r.GuardPath(), r.LogPath()} {
		if filepath.Dir(p) != r.Dir() {
			t.Errorf("%s not under session dir", p)
		}
	}
}

func TestRegistrySanitizesSessionID(t *testing.T) {
	r := NewRegistry(t.TempDir(), "../../etc")
	if r.SessionID() != "default" {
		t.Errorf("unsafe session ID accepted: %s", r.SessionID())
	}
}

func TestPIDRoundtrip(t *testing.T) {
	r := testRegistry(t)
	if err := r.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	if err := r.WritePID(); err != nil {
		t.Fatal(err)
	}
	pid, err := r.ReadPID()
	if err != nil {
		t.Fatal(err)
	}
	if pid != os.Getpid() {
		t.Errorf("ReadPID = %d, want %d", pid, os.Getpid())
	}
	if !r.IsLive() {
		t.Error("own process should read as live")
	}
}

func TestIsLiveDeadProcess(t *testing.T) {
	r := testRegistry(t)
	if err := r.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	// PID far above any default pid_max allocation in a test environment.
	if err := os.WriteFile(r.PIDPath(), []byte("999999"), 0600); err != nil {
		t.Fatal(err)
	}
	if r.IsLive() {
		t.Error("dead PID should not read as live")
	}
}

func TestIsLiveNoMarker(t *testing.T) {
	r := testRegistry(t)
	if r.IsLive() {
		t.Error("missing PID marker should not read as live")
	}
}

func TestEnsureSpawnedFirstCall(t *testing.T) {
	r := testRegistry(t)
	count := 0
	stubSpawn(t, r, os.Getpid(), &count)

	if err := r.EnsureSpawned(""); err != nil {
		t.Fatalf("EnsureSpawned: %v", err)
	}
	if count != 1 {
		t.Errorf("spawn count = %d, want 1", count)
	}
	if _, err := r.GuardTime(); err != nil {
		t.Errorf("guard marker not written: %v", err)
	}
}

func TestEnsureSpawnedTwiceSpawnsOnce(t *testing.T) {
	r := testRegistry(t)
	count := 0
	stubSpawn(t, r, os.Getpid(), &count)

	if err := r.EnsureSpawned(""); err != nil {
		t.Fatal(err)
	}
	if err := r.EnsureSpawned(""); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("spawn count = %d, want 1 (second call must no-op against a live watcher)", count)
	}
}

func TestEnsureSpawnedRecoversFromStaleGuard(t *testing.T) {
	r := testRegistry(t)
	if err := r.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	// Simulate a crashed watcher: guard + dead PID + leftover socket file.
	if err := r.WriteGuard(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(r.PIDPath(), []byte("999999"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(r.SocketPath(), nil, 0600); err != nil {
		t.Fatal(err)
	}

	count := 0
	stubSpawn(t, r, os.Getpid(), &count)

	if err := r.EnsureSpawned(""); err != nil {
		t.Fatalf("EnsureSpawned: %v", err)
	}
	if count != 1 {
		t.Errorf("spawn count = %d, want 1 (stale guard must trigger respawn)", count)
	}
}

func TestEnsureSpawnedFreshGuardWithoutPID(t *testing.T) {
	r := testRegistry(t)
	if err := r.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	// Guard just written but no PID marker yet: the spawned watcher has
	// not finished starting. A burst of hook events must not clear it.
	if err := r.WriteGuard(); err != nil {
		t.Fatal(err)
	}

	count := 0
	stubSpawn(t, r, os.Getpid(), &count)

	if err := r.EnsureSpawned(""); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("spawn count = %d, want 0 (fresh guard means spawn in flight)", count)
	}
	if _, err := r.GuardTime(); err != nil {
		t.Errorf("guard must survive the burst: %v", err)
	}
}

func TestEnsureSpawnedExpiredGuardWithoutPID(t *testing.T) {
	r := testRegistry(t)
	if err := r.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	// Guard well past the grace period with no PID marker: the spawn died
	// before the watcher ever wrote its PID.
	old := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	if err := os.WriteFile(r.GuardPath(), []byte(old+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	count := 0
	stubSpawn(t, r, os.Getpid(), &count)

	if err := r.EnsureSpawned(""); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("spawn count = %d, want 1", count)
	}
}

func TestEnsureSpawnedGuardPrecedesSpawn(t *testing.T) {
	r := testRegistry(t)
	count := 0
	r.spawn = func(string) (int, error) {
		count++
		if _, err := r.GuardTime(); err != nil {
			t.Errorf("guard must be written before spawn: %v", err)
		}
		return os.Getpid(), os.WriteFile(r.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0600)
	}

	if err := r.EnsureSpawned(""); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("spawn count = %d, want 1", count)
	}
}

func TestEnsureSpawnedFailureClearsGuard(t *testing.T) {
	r := testRegistry(t)
	r.spawn = func(string) (int, error) {
		return 0, errors.New("exec failed")
	}

	if err := r.EnsureSpawned(""); err == nil {
		t.Fatal("expected spawn error")
	}
	if _, err := r.GuardTime(); !os.IsNotExist(err) {
		t.Errorf("guard must not survive a failed spawn: %v", err)
	}
}

func TestRotateIfLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watcher.log")
	if err := os.WriteFile(path, []byte("0123456789"), 0600); err != nil {
		t.Fatal(err)
	}

	// Below the limit: untouched.
	if err := RotateIfLarge(path, 64); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("small log must not rotate: %v", err)
	}

	// At the limit: archived, replacing any previous archive.
	if err := os.WriteFile(path+".1", []byte("old archive"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := RotateIfLarge(path, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("rotated log still present: %v", err)
	}
	data, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "0123456789" {
		t.Errorf("archive = %q, want the rotated contents", data)
	}

	// Missing file: no-op.
	if err := RotateIfLarge(filepath.Join(dir, "absent.log"), 10); err != nil {
		t.Errorf("missing file must be a no-op: %v", err)
	}
}

func TestDefaultStateDirEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(stateDirEnv, dir)
	if got := DefaultStateDir(); got != dir {
		t.Errorf("DefaultStateDir = %s, want %s", got, dir)
	}
}
