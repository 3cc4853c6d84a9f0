package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reduct-dev/reduct/pkg/inspect"
	"github.com/reduct-dev/reduct/pkg/metrics"
	"github.com/reduct-dev/reduct/pkg/reduct"
	"github.com/reduct-dev/reduct/pkg/tracing"
)

// The demo runs a synthetic download manager: tasks come and go, each task
// owns a cancellable download effect, and the inspector exposes the whole
// thing live. Point a WebSocket client at /ws (or curl /state) and watch.

type task struct {
	ID       string `json:"id"`
	Progress int    `json:"progress"`
	Done     bool   `json:"done"`
}

type demoState struct {
	Tasks     reduct.Identified[string, task] `json:"tasks"`
	Completed int                             `json:"completed"`
	Cancelled int                             `json:"cancelled"`
}

type demoAction any

type spawnTask struct{ ID string }
type dropTask struct{ ID string }
type taskMsg struct {
	ID     string
	Action demoAction
}
type progressTick struct{}

func demoReducer(interval time.Duration) reduct.Reducer[demoState, demoAction] {
	return func(s demoState, a demoAction) (demoState, []reduct.Effect[demoAction]) {
		switch a := a.(type) {
		case spawnTask:
			id := a.ID
			s.Tasks = s.Tasks.Append(id, task{ID: id})
			return s, []reduct.Effect[demoAction]{{
				ID: "download/" + id,
				Run: func(ctx context.Context, send func(demoAction)) {
					ticker := time.NewTicker(interval)
					defer ticker.Stop()
					for {
						select {
						case <-ctx.Done():
							return
						case <-ticker.C:
							send(taskMsg{ID: id, Action: progressTick{}})
						}
					}
				},
			}}

		case dropTask:
			if t, ok := s.Tasks.Get(a.ID); ok && !t.Done {
				s.Cancelled++
			}
			s.Tasks = s.Tasks.Remove(a.ID)

		case taskMsg:
			switch a.Action.(type) {
			case progressTick:
				s.Tasks = s.Tasks.Update(a.ID, func(t task) task {
					if t.Progress < 100 {
						t.Progress += 10
					}
					return t
				})
				if t, ok := s.Tasks.Get(a.ID); ok && t.Progress >= 100 && !t.Done {
					s.Tasks = s.Tasks.Update(a.ID, func(t task) task {
						t.Done = true
						return t
					})
					s.Completed++
					// Superseding under the same id stops the ticker.
					return s, []reduct.Effect[demoAction]{{
						ID:  "download/" + a.ID,
						Run: func(ctx context.Context, send func(demoAction)) {},
					}}
				}
			}
		}
		return s, nil
	}
}

func demoCmd() *cobra.Command {
	var (
		addr     string
		maxTasks int
		interval time.Duration
		churn    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the download-manager demo store with a live inspector",
		Long: `Run a synthetic download-manager store.

Tasks are spawned and dropped continuously; each task owns a cancellable
download effect that reports progress as actions. Dropping a task cancels
its download in the same mutation pass.

Endpoints (on --addr):
  /state     current state as JSON
  /effects   in-flight effect registry
  /metrics   Prometheus metrics
  /ws        WebSocket change feed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(addr, maxTasks, interval, churn)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":6060", "inspector listen address")
	cmd.Flags().IntVar(&maxTasks, "tasks", 5, "maximum concurrent tasks")
	cmd.Flags().DurationVar(&interval, "interval", 300*time.Millisecond, "progress tick interval")
	cmd.Flags().DurationVar(&churn, "churn", 2*time.Second, "task spawn/drop period")

	return cmd
}

func runDemo(addr string, maxTasks int, interval, churn time.Duration) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := reduct.New(
		demoState{Tasks: reduct.NewIdentified(func(t task) string { return t.ID })},
		demoReducer(interval),
		reduct.WithLogger(logger),
		reduct.WithObserver(metrics.New()),
		reduct.WithObserver(tracing.New()),
	)
	defer store.Close()

	printBanner()
	logger.Info("demo store running", "addr", addr, "max_tasks", maxTasks)

	// Churn loop: keep the task set moving so every code path stays warm.
	go func() {
		ticker := time.NewTicker(churn)
		defer ticker.Stop()
		seq := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := store.State()
				switch {
				case s.Tasks.Len() < maxTasks && rand.Intn(3) > 0:
					seq++
					store.Send(spawnTask{ID: fmt.Sprintf("task-%d", seq)})
				case s.Tasks.Len() > 0:
					ids := s.Tasks.IDs()
					store.Send(dropTask{ID: ids[rand.Intn(len(ids))]})
				}
			}
		}
	}()

	inspector := inspect.NewServer(store,
		inspect.WithAddr(addr),
		inspect.WithLogger(logger),
	)
	return inspector.ListenAndServe(ctx)
}
