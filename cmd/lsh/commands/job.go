package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lsh-sh/lsh/internal/daemonconfig"
	"github.com/lsh-sh/lsh/internal/ipc"
	"github.com/lsh-sh/lsh/internal/job"
	"github.com/lsh-sh/lsh/internal/store"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Create and control jobs on a running daemon",
	}
	cmd.AddCommand(
		newJobCreateCmd(),
		newJobStartCmd(),
		newJobStopCmd(),
		newJobPauseCmd(),
		newJobResumeCmd(),
		newJobKillCmd(),
		newJobListCmd(),
		newJobGetCmd(),
		newJobUpdateCmd(),
		newJobRemoveCmd(),
		newJobMonitorCmd(),
		newJobCleanupCmd(),
		newJobStatsCmd(),
	)
	return cmd
}

// clientFor resolves the control socket path (flag, then config file,
// then default) and builds a Client for it.
func clientFor(cmd *cobra.Command) *ipc.Client {
	socket, _ := cmd.Root().PersistentFlags().GetString("socket")
	if socket == "" {
		configPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := daemonconfig.LoadFromFile(configPath)
		if err == nil {
			socket = cfg.IPC.SocketPath
		}
	}
	if socket == "" {
		socket = daemonconfig.DefaultConfig().IPC.SocketPath
	}
	return ipc.NewClient(socket)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func newJobCreateCmd() *cobra.Command {
	var (
		name, command, jobType, cwd, user, cron, logFile, description string
		argv, tags                                                    []string
		priority                                                      int
		timeoutMs, intervalMs                                         int64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if command == "" {
				return fmt.Errorf("--command is required")
			}
			spec := job.Spec{
				Name:        name,
				Command:     command,
				Argv:        argv,
				Type:        job.Type(jobType),
				Cwd:         cwd,
				User:        user,
				Priority:    priority,
				TimeoutMs:   timeoutMs,
				Tags:        tags,
				Description: description,
				LogFile:     logFile,
			}
			if cron != "" || intervalMs > 0 {
				spec.Schedule = &job.Schedule{Cron: cron, IntervalMs: intervalMs}
			}
			result, err := clientFor(cmd).Call("CreateJob", spec)
			if err != nil {
				return err
			}
			return printRaw(result)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "job name")
	cmd.Flags().StringVar(&command, "command", "", "command to run (required)")
	cmd.Flags().StringSliceVar(&argv, "arg", nil, "extra argument (repeatable)")
	cmd.Flags().StringVar(&jobType, "type", "", "shell, system, scheduled, or service")
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory")
	cmd.Flags().StringVar(&user, "user", "", "informational user tag")
	cmd.Flags().IntVar(&priority, "priority", 0, "nice-style priority, -20..19")
	cmd.Flags().Int64Var(&timeoutMs, "timeout-ms", 0, "kill the job after this many milliseconds")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	cmd.Flags().StringVar(&logFile, "log-file", "", "append combined stdout/stderr to this path")
	cmd.Flags().StringVar(&cron, "cron", "", "5-field cron expression")
	cmd.Flags().Int64Var(&intervalMs, "interval-ms", 0, "fire every N milliseconds")
	return cmd
}

func newJobStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start a created or stopped job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFor(cmd).Call("StartJob", map[string]string{"id": args[0]})
			if err != nil {
				return err
			}
			return printRaw(result)
		},
	}
}

func newJobStopCmd() *cobra.Command {
	var signal string
	cmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFor(cmd).Call("StopJob", map[string]string{"id": args[0], "signal": signal})
			if err != nil {
				return err
			}
			return printRaw(result)
		},
	}
	cmd.Flags().StringVar(&signal, "signal", "", "TERM, KILL, STOP, CONT, or INT (default TERM)")
	return cmd
}

func newJobPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <id>",
		Short: "Suspend a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFor(cmd).Call("PauseJob", map[string]string{"id": args[0]})
			if err != nil {
				return err
			}
			return printRaw(result)
		},
	}
}

func newJobResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a paused job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFor(cmd).Call("ResumeJob", map[string]string{"id": args[0]})
			if err != nil {
				return err
			}
			return printRaw(result)
		},
	}
}

func newJobKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <id>",
		Short: "Hard-kill a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFor(cmd).Call("KillJob", map[string]string{"id": args[0]})
			if err != nil {
				return err
			}
			return printRaw(result)
		},
	}
}

func newJobListCmd() *cobra.Command {
	var status, jobType, nameRegex string
	cmd := &cobra.Command{
		Use:     "ls",
		Short:   "List jobs",
		Aliases: []string{"list"},
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.Filter{NameRegex: nameRegex}
			if status != "" {
				filter.Status = []job.Status{job.Status(status)}
			}
			if jobType != "" {
				filter.Type = []job.Type{job.Type(jobType)}
			}
			result, err := clientFor(cmd).Call("ListJobs", filter)
			if err != nil {
				return err
			}
			var jobs []*job.Job
			if err := json.Unmarshal(result, &jobs); err != nil {
				return printRaw(result)
			}
			return renderJobTable(jobs)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&jobType, "type", "", "filter by type")
	cmd.Flags().StringVar(&nameRegex, "name", "", "filter by name regex")
	return cmd
}

func renderJobTable(jobs []*job.Job) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return printJSON(jobs)
	}
	fmt.Printf("%-12s %-20s %-10s %-10s %s\n", "ID", "NAME", "TYPE", "STATUS", "COMMAND")
	for _, j := range jobs {
		fmt.Printf("%-12s %-20s %-10s %-10s %s\n", j.ID, truncate(j.Name, 20), j.Type, j.Status, j.Command)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func newJobGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one job's full record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFor(cmd).Call("GetJob", map[string]string{"id": args[0]})
			if err != nil {
				return err
			}
			return printRaw(result)
		},
	}
}

func newJobUpdateCmd() *cobra.Command {
	var name, description string
	var priority int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Patch a job's mutable metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := job.Patch{}
			if name != "" {
				patch.Name = &name
			}
			if description != "" {
				patch.Description = &description
			}
			if cmd.Flags().Changed("priority") {
				patch.Priority = &priority
			}
			result, err := clientFor(cmd).Call("UpdateJob", map[string]any{"id": args[0], "patch": patch})
			if err != nil {
				return err
			}
			return printRaw(result)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().IntVar(&priority, "priority", 0, "new priority, -20..19")
	return cmd
}

func newJobRemoveCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "remove <id>",
		Short:   "Delete a job record",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFor(cmd).Call("RemoveJob", map[string]any{"id": args[0], "force": force})
			if err != nil {
				return err
			}
			return printRaw(result)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "kill the process first if the job is running/paused")
	return cmd
}

func newJobMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor <id>",
		Short: "Show a live CPU/memory sample for a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFor(cmd).Call("MonitorJob", map[string]string{"id": args[0]})
			if err != nil {
				return err
			}
			if string(result) == "null" {
				fmt.Println("job is not currently running")
				return nil
			}
			return printRaw(result)
		},
	}
}

func newJobCleanupCmd() *cobra.Command {
	var olderThan string
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove terminal jobs older than a threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			cutoff := time.Now()
			if olderThan != "" {
				d, err := parseDuration(olderThan)
				if err != nil {
					return err
				}
				cutoff = time.Now().Add(-d)
			}
			result, err := clientFor(cmd).Call("CleanupJobs", map[string]time.Time{"older_than": cutoff})
			if err != nil {
				return err
			}
			return printRaw(result)
		},
	}
	cmd.Flags().StringVar(&olderThan, "older-than", "24h", "age threshold, e.g. 24h, 30m")
	return cmd
}

func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	// Allow bare integer hours as a convenience, e.g. "24".
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return time.Duration(n) * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

func newJobStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFor(cmd).Call("GetStats", nil)
			if err != nil {
				return err
			}
			return printRaw(result)
		},
	}
}

func printRaw(data json.RawMessage) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		fmt.Println(string(data))
		return nil
	}
	return printJSON(v)
}
