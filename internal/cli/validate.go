package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.Warning         `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow>",
		Short: "Validate a workflow without running it",
		Long: `Validate a YAML or CUE workflow without running it.

Checks action structure, compiles every pattern and template, verifies
module names against the built-in registry, and warns about triggers that
fire undefined events or can re-fire themselves. Warnings never fail
validation; the run bounds stop runaway cycles at runtime.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Load errors (file not found, syntax) are command-level errors
	loaded, err := LoadWorkflow(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), err.Error(), nil)
	}

	formatter.VerboseLog("Validating %d event(s) in %s", len(loaded.Workflow.Order), path)

	result := ValidateWorkflow(loaded)
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidateWorkflow runs structural validation and the static analyses on a
// loaded workflow.
func ValidateWorkflow(loaded *compiler.Loaded) ValidationResult {
	errs := compiler.Validate(loaded.Workflow, knownModules())
	warnings := compiler.UndefinedEvents(loaded.Workflow)
	warnings = append(warnings, compiler.AnalyzeCycles(loaded.Workflow)...)
	warnings = append(warnings, compiler.UnstoredKeys(loaded.Workflow, OutputDirKey)...)

	return ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ Workflow valid")
	printWarnings(formatter, result.Warnings)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return reportedExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)), nil)
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n", err.Field)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}
	printWarnings(formatter, result.Warnings)

	// Validation failures = exit code 1 (test/validation failure)
	return reportedExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)), nil)
}

func printWarnings(formatter *OutputFormatter, warnings []compiler.Warning) {
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "⚠ %s: %s\n", w.Code, w.Message)
	}
}
