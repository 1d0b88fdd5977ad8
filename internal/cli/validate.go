package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/inkwell/internal/harness"
)

// FileValidation holds the validation outcome for one scenario file.
type FileValidation struct {
	File  string `json:"file"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results for a validate run.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml|scenarios-dir>",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario YAML files against the schema.

Each file is checked against the CUE scenario schema, decoded strictly
(unknown fields are rejected), and checked for semantic mistakes such as
a step with two directives or an edit before any open.

Exit codes:
  0 - All files valid
  1 - One or more files invalid
  2 - Command error (path not found, no scenario files)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := collectScenarioFiles(path)
	if err != nil {
		_ = formatter.Error("E_SCENARIO_PATH", err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot collect scenario files", err)
	}
	if len(files) == 0 {
		_ = formatter.Error("E_NO_SCENARIOS", fmt.Sprintf("no scenario files under %s", path), nil)
		return NewExitError(ExitCommandError, "no scenario files found")
	}

	result := ValidationResult{Valid: true}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		fv := FileValidation{File: file, Valid: true}
		if _, err := harness.LoadScenario(file); err != nil {
			fv.Valid = false
			fv.Error = err.Error()
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		for _, fv := range result.Files {
			if fv.Valid {
				fmt.Fprintf(formatter.Writer, "✓ %s\n", fv.File)
			} else {
				fmt.Fprintf(formatter.Writer, "✗ %s\n  %s\n", fv.File, fv.Error)
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "one or more scenario files are invalid")
	}
	return nil
}

// collectScenarioFiles returns path itself when it is a YAML file, or
// every .yaml/.yml file under it when it is a directory.
func collectScenarioFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		// Golden fixtures live next to scenarios; skip anything under a
		// golden directory.
		if strings.Contains(p, string(filepath.Separator)+"golden"+string(filepath.Separator)) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	return files, err
}
