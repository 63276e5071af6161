package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookwatch/internal/ipc"
	"github.com/ppiankov/hookwatch/internal/session"
)

var (
	statusSession  string
	statusStateDir string
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusSession, "session", "default", "Session identifier")
	statusCmd.Flags().StringVar(&statusStateDir, "state-dir", "", "State directory (default ~/.hookwatch)")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session watcher status",
	Long:  "Reports whether the session's watcher is live and its socket reachable.\nDoes not query pending issues: that read drains the queue.",
	RunE:  runStatus,
}

type sessionStatus struct {
	Session      string `json:"session"`
	Live         bool   `json:"live"`
	PID          int    `json:"pid,omitempty"`
	Reachable    bool   `json:"reachable"`
	Socket       string `json:"socket"`
	GuardAge     string `json:"guard_age,omitempty"`
	IssuesLogged int    `json:"issues_logged"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	reg := session.NewRegistry(statusStateDir, statusSession)

	st := sessionStatus{
		Session: reg.SessionID(),
		Socket:  reg.SocketPath(),
		Live:    reg.IsLive(),
	}
	if pid, err := reg.ReadPID(); err == nil {
		st.PID = pid
	}
	// A bare dial probes reachability without draining anything.
	if conn, err := net.DialTimeout("unix", reg.SocketPath(), ipc.DefaultTimeout); err == nil {
		st.Reachable = true
		conn.Close()
	}
	if stamp, err := reg.GuardTime(); err == nil {
		st.GuardAge = time.Since(stamp).Round(time.Second).String()
	}
	// Issue history survives queue drains in the session's issue log.
	if data, err := os.ReadFile(reg.IssueLogPath()); err == nil {
		st.IssuesLogged = bytes.Count(data, []byte("\n"))
	}

	out, _ := json.MarshalIndent(st, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
