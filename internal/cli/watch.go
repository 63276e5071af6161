package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookwatch/internal/rules"
	"github.com/ppiankov/hookwatch/internal/session"
	"github.com/ppiankov/hookwatch/internal/watcher"
)

var (
	watchSession    string
	watchStateDir   string
	watchTranscript string
	watchRules      string
	watchIdle       time.Duration
	watchPoll       bool
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchSession, "session", "", "Session identifier")
	watchCmd.Flags().StringVar(&watchStateDir, "state-dir", "", "State directory (default ~/.hookwatch)")
	watchCmd.Flags().StringVar(&watchTranscript, "transcript", "", "Transcript JSONL to tail")
	watchCmd.Flags().StringVar(&watchRules, "rules", "", "Path to rules YAML overlay")
	watchCmd.Flags().DurationVar(&watchIdle, "idle-timeout", 0, "Exit after this long without events (default 4h)")
	watchCmd.Flags().BoolVar(&watchPoll, "poll", false, "Poll the transcript instead of using inotify")
	_ = watchCmd.MarkFlagRequired("session")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the session watcher",
	Long:  "Runs the per-session watcher in the foreground: owns the session socket,\ntails the transcript, and accumulates findings for hook clients.\nHook handlers normally spawn this automatically.",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	engine, err := rules.Load(watchRules)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	reg := session.NewRegistry(watchStateDir, watchSession)
	w, err := watcher.New(watcher.Config{
		Registry:    reg,
		Transcript:  watchTranscript,
		Engine:      engine,
		IdleTimeout: watchIdle,
		PollMode:    watchPoll,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "hookwatch: watcher shutting down")
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "hookwatch: watching session %s\n", reg.SessionID())
	return w.Run(ctx)
}
