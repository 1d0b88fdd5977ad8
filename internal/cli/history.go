package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/inkwell/internal/field"
	"github.com/roach88/inkwell/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
}

// AttemptView is one persist attempt in history output.
type AttemptView struct {
	Token       string `json:"token"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
	Revision    int64  `json:"revision,omitempty"`
	ETag        string `json:"etag,omitempty"`
	AttemptedAt string `json:"attempted_at"`
}

// HistoryResult holds the full history output for one record.
type HistoryResult struct {
	RecordID string         `json:"record_id"`
	Snapshot map[string]any `json:"snapshot,omitempty"`
	Revision string         `json:"revision,omitempty"`
	Attempts []AttemptView  `json:"attempts"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <record-id>",
		Short: "Show a record's persist attempt history",
		Long: `Show every persist attempt for a record, oldest first, along with
its current snapshot.

Failed attempts keep their error text, so a record that went through the
retry loop shows the full convergence path.

Examples:
  inkwell history --db ./notes.db 1b4e28ba-2fa1-7000-8000-000000000000
  inkwell history --db ./notes.db my-note --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, recordID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	attempts, err := st.History(ctx, recordID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	result := HistoryResult{
		RecordID: recordID,
		Attempts: make([]AttemptView, 0, len(attempts)),
	}
	for _, a := range attempts {
		result.Attempts = append(result.Attempts, AttemptView{
			Token:       a.Token,
			Outcome:     a.Outcome,
			Error:       a.Error,
			Revision:    a.Revision,
			ETag:        a.ETag,
			AttemptedAt: a.AttemptedAt.Format(time.RFC3339Nano),
		})
	}

	snap, ok, err := st.Load(ctx, recordID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}
	if ok {
		result.Snapshot = field.MapToAny(snap.Fields)
		result.Revision = snap.Revision
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}
	return outputHistoryText(cmd, result)
}

func outputHistoryText(cmd *cobra.Command, result HistoryResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Record: %s\n", result.RecordID)
	if result.Snapshot == nil {
		fmt.Fprintln(w, "No persisted snapshot.")
	} else {
		fmt.Fprintf(w, "Revision: %s\n", result.Revision)
		names := make([]string, 0, len(result.Snapshot))
		for name := range result.Snapshot {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %v\n", name, result.Snapshot[name])
		}
	}

	fmt.Fprintln(w)
	if len(result.Attempts) == 0 {
		fmt.Fprintln(w, "No persist attempts recorded.")
		return nil
	}
	fmt.Fprintf(w, "Attempts (%d):\n", len(result.Attempts))
	for _, a := range result.Attempts {
		switch a.Outcome {
		case "ok":
			fmt.Fprintf(w, "  ✓ %s  r%d  %s\n", a.AttemptedAt, a.Revision, a.Token)
		default:
			fmt.Fprintf(w, "  ✗ %s  %s\n", a.AttemptedAt, a.Token)
			if a.Error != "" {
				fmt.Fprintf(w, "      %s\n", a.Error)
			}
		}
	}
	return nil
}

// RecordsResult holds the records listing output.
type RecordsResult struct {
	Records []RecordView `json:"records"`
	Total   int          `json:"total"`
}

// RecordView is one record in the listing.
type RecordView struct {
	RecordID string `json:"record_id"`
	Revision int64  `json:"revision"`
}

// NewRecordsCommand creates the records command.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List persisted records",
		Long: `List every persisted record with its current revision.

Examples:
  inkwell records --db ./notes.db
  inkwell records --db ./notes.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecords(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRecords(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	records, err := st.Records(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list records", err)
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := RecordsResult{Total: len(ids)}
	for _, id := range ids {
		result.Records = append(result.Records, RecordView{RecordID: id, Revision: records[id]})
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(w, "No records.")
		return nil
	}
	for _, r := range result.Records {
		fmt.Fprintf(w, "%s  r%d\n", r.RecordID, r.Revision)
	}
	fmt.Fprintf(w, "\n%d record(s)\n", result.Total)
	return nil
}
