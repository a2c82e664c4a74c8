package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mattjoyce/gpiogw/internal/client"
	"github.com/mattjoyce/gpiogw/internal/task"
	"github.com/mattjoyce/gpiogw/internal/tui"
)

const requestTimeout = 15 * time.Second

// remoteFlags are shared by every command that talks to a running gateway.
type remoteFlags struct {
	addr    *string
	token   *string
	jsonOut *bool
}

func newRemoteFlagSet(name string) (*flag.FlagSet, remoteFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	rf := remoteFlags{
		addr:    fs.String("addr", envOr("GPIOGW_ADDR", client.DefaultAddr), "Gateway API address"),
		token:   fs.String("token", os.Getenv("GPIOGW_TOKEN"), "Bearer token"),
		jsonOut: fs.Bool("json", false, "Output in structured JSON format"),
	}
	return fs, rf
}

func (rf remoteFlags) client() *client.Client {
	return client.New(*rf.addr, *rf.token)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func runSystemStatus(args []string) int {
	fs, rf := newRemoteFlagSet("status")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	h, err := rf.client().Health(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *rf.jsonOut {
		printJSON(h)
		return 0
	}
	fmt.Printf("status:   %s\nuptime:   %s\nqueue:    %d\ntasks:    %d\nhandlers: %d\n",
		h.Status, (time.Duration(h.UptimeSeconds) * time.Second).String(), h.QueueDepth, h.ActiveTasks, h.HandlersLoaded)
	return 0
}

func runActionSend(args []string) int {
	fs, rf := newRemoteFlagSet("send")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: gpiogw action send <file.json|-> [--addr --token --json]")
		return 1
	}

	body, err := readInput(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := rf.client().SendActions(ctx, body)
	if *rf.jsonOut && (err == nil || len(resp.Rejected) > 0) {
		printJSON(resp)
	} else {
		for _, q := range resp.Queued {
			fmt.Printf("queued   %s %s/%s %s\n", q.ID, q.Kind, q.Config, q.TaskID)
		}
		for _, r := range resp.Rejected {
			fmt.Printf("rejected #%d %s/%s: %s\n", r.Index, r.Kind, r.Config, r.Error)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func runTaskList(args []string) int {
	fs, rf := newRemoteFlagSet("list")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	tasks, err := rf.client().Tasks(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *rf.jsonOut {
		printJSON(tasks)
		return 0
	}
	if len(tasks) == 0 {
		fmt.Println("No running tasks")
		return 0
	}
	t := newTable("TASK", "KIND", "CONFIG", "ORIGIN", "RUNNING", "STATUS")
	for _, info := range tasks {
		t.Row(info.ID, info.Kind, info.Config, info.Origin, since(info.StartedAt), taskStatus(info))
	}
	fmt.Println(t.String())
	return 0
}

func runTaskGet(args []string) int {
	fs, rf := newRemoteFlagSet("get")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: gpiogw task get <id>")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	info, err := rf.client().Task(ctx, fs.Arg(0))
	if err != nil {
		return reportTaskError(fs.Arg(0), err)
	}
	if *rf.jsonOut {
		printJSON(info)
		return 0
	}
	fmt.Printf("task:     %s\nkind:     %s\nconfig:   %s\norigin:   %s\nstatus:   %s\nrunning:  %s\nqueue id: %s\n",
		info.ID, info.Kind, info.Config, info.Origin, taskStatus(info), since(info.StartedAt), info.QueueItemID)
	return 0
}

func runTaskCancel(args []string) int {
	fs, rf := newRemoteFlagSet("cancel")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: gpiogw task cancel <id>")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := rf.client().CancelTask(ctx, fs.Arg(0)); err != nil {
		return reportTaskError(fs.Arg(0), err)
	}
	fmt.Printf("cancellation requested for %s\n", fs.Arg(0))
	return 0
}

func reportTaskError(id string, err error) int {
	if errors.Is(err, client.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "No running task %q\n", id)
		return 1
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func taskStatus(info task.Info) string {
	if info.CancelRequested && info.Status == task.StatusRunning {
		return "cancelling"
	}
	return string(info.Status)
}

func since(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return time.Since(t).Round(time.Second).String()
}

func runPluginList(args []string) int {
	fs, rf := newRemoteFlagSet("list")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	plugins, err := rf.client().Plugins(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *rf.jsonOut {
		printJSON(plugins)
		return 0
	}
	t := newTable("IMPLEMENTATION", "KINDS", "STATE")
	for _, p := range plugins {
		state, _ := json.Marshal(p.State)
		t.Row(p.Implementation, strings.Join(p.Kinds, ","), string(state))
	}
	fmt.Println(t.String())
	return 0
}

func runHistory(args []string) int {
	fs, rf := newRemoteFlagSet("history")
	limit := fs.Int("limit", 20, "Number of entries (1-1000)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	h, err := rf.client().History(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *rf.jsonOut {
		printJSON(h)
		return 0
	}
	t := newTable("FINISHED", "KIND", "CONFIG", "TASK", "OUTCOME", "MS", "ERROR")
	for _, e := range h.Entries {
		t.Row(e.CompletedAt.Local().Format(time.DateTime), e.Kind, e.Config, e.TaskID, string(e.Status), fmt.Sprint(e.DurationMS), e.LastError)
	}
	fmt.Println(t.String())
	return 0
}

func runWatch(args []string) int {
	fs, rf := newRemoteFlagSet("watch")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	p := tea.NewProgram(tui.NewMonitor(*rf.addr, *rf.token))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
