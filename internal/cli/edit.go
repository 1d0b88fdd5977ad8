package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/inkwell/internal/engine"
	"github.com/roach88/inkwell/internal/store"
)

// EditOptions holds flags for the edit command.
type EditOptions struct {
	*RootOptions
	Database string
	Debounce time.Duration
	Retry    time.Duration
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit [record-id]",
		Short: "Edit a record with live autosave",
		Long: `Open an autosave session against a SQLite database and edit a
record from stdin. Without a record-id a new record is created.

Commands read line by line:
  set <field> <value>   update one field (comma-separated values become a list)
  save                  save immediately, bypassing the debounce
  status                print the current save status
  quit                  flush unsaved changes and exit

EOF and Ctrl-C also flush and exit. Saves happen automatically after
1.5s of inactivity; failures retry every 5s until they converge.

Examples:
  inkwell edit --db ./notes.db
  inkwell edit --db ./notes.db 1b4e28ba-2fa1-7000-8000-000000000000
  echo "set title Groceries" | inkwell edit --db ./notes.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID := ""
			if len(args) == 1 {
				recordID = args[0]
			}
			return runEdit(opts, recordID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", engine.DefaultDebounce, "inactivity window before an automatic save")
	cmd.Flags().DurationVar(&opts.Retry, "retry", engine.DefaultRetryDelay, "delay between failed save attempts")

	return cmd
}

func runEdit(opts *EditOptions, recordID string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions)
	out := cmd.OutOrStdout()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	eng := engine.New(st,
		engine.WithDebounce(opts.Debounce),
		engine.WithRetryDelay(opts.Retry),
		engine.WithLogger(logger),
	)
	eng.OnStatusChange(func(c engine.StatusChange) {
		if c.Status == engine.StatusError && c.Err != nil {
			fmt.Fprintf(out, "! save failed, retrying: %v\n", c.Err)
		}
	})

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	// A signal only ends the read loop. The engine keeps running so the
	// close-time flush below can still reach the store.
	readCtx, readCancel := context.WithCancel(parentCtx)
	defer readCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, closing session", "signal", sig)
			readCancel()
		case <-readCtx.Done():
		}
	}()

	runDone := make(chan error, 1)
	go func() {
		runDone <- eng.Run(context.Background())
	}()

	if err := eng.OpenSession(readCtx, recordID, nil); err != nil {
		eng.Stop()
		<-runDone
		return WrapExitError(ExitCommandError, "failed to open session", err)
	}
	fmt.Fprintln(out, "Session open. Type 'set <field> <value>', 'save', 'status' or 'quit'.")

	readEditCommands(readCtx, eng, cmd)

	// One best-effort flush; the session closes regardless of its outcome.
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	closeErr := eng.CloseSession(closeCtx)
	if closeErr != nil {
		fmt.Fprintf(out, "warning: closed with unsaved changes: %v\n", closeErr)
	}

	eng.Stop()
	<-runDone

	if closeErr != nil {
		return NewExitError(ExitFailure, "session closed with unsaved changes")
	}
	fmt.Fprintln(out, "Session closed.")
	return nil
}

// readEditCommands consumes stdin commands until quit, EOF, or
// cancellation.
func readEditCommands(ctx context.Context, eng *engine.Engine, cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "quit", "exit":
				return
			case "save":
				if err := eng.RequestImmediateSave(); err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
				}
			case "status":
				fmt.Fprintf(out, "status: %s", eng.Status())
				if err := eng.LastError(); err != nil {
					fmt.Fprintf(out, " (last error: %v)", err)
				}
				fmt.Fprintln(out)
			case "set":
				if len(fields) < 3 {
					fmt.Fprintln(out, "usage: set <field> <value>")
					continue
				}
				value := parseEditValue(strings.Join(fields[2:], " "))
				if err := eng.UpdateField(fields[1], value); err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
				}
			default:
				fmt.Fprintf(out, "unknown command %q\n", fields[0])
			}
		}
	}
}

// parseEditValue interprets a stdin value: comma lists become string
// lists, bare bools and integers become typed values, everything else
// stays a string.
func parseEditValue(raw string) any {
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				list = append(list, trimmed)
			}
		}
		return list
	}
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}
