package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled workflow and its identity.
type CompilationResult struct {
	Path     string       `json:"path"`
	Hash     string       `json:"hash"`
	Workflow *ir.Workflow `json:"workflow"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	EventCount  int
	ActionCount int
	ByKind      map[ir.ActionKind]int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <workflow>",
		Short: "Compile a workflow to its JSON form",
		Long: `Compile a YAML or CUE workflow and print the compiled form.

The compiler keeps event and rule declaration order, resolves the legacy
key aliases (append_array, append_dict_array, patterns) and reports the
content hash recorded with every run of this workflow.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := LoadWorkflow(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), err.Error(), nil)
	}
	formatter.VerboseLog("Compiled %s (%d bytes)", loaded.Path, len(loaded.Source))

	result := &CompilationResult{
		Path:     loaded.Path,
		Hash:     loaded.Hash,
		Workflow: loaded.Workflow,
	}
	stats := calculateStats(loaded.Workflow)

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeWorkflowToFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// calculateStats computes summary statistics from a compiled workflow.
func calculateStats(wf *ir.Workflow) CompilationStats {
	stats := CompilationStats{
		EventCount: len(wf.Order),
		ByKind:     make(map[ir.ActionKind]int),
	}
	for _, event := range wf.Order {
		for _, spec := range wf.Events[event] {
			stats.ActionCount++
			stats.ByKind[spec.Kind]++
		}
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d event(s), %d action(s)\n\n", stats.EventCount, stats.ActionCount)

	fmt.Fprintln(w, "Events:")
	for _, event := range result.Workflow.Order {
		specs := result.Workflow.Events[event]
		fmt.Fprintf(w, "  %s: %d action(s)\n", event, len(specs))
		for _, spec := range specs {
			fmt.Fprintf(w, "    %s [%s] %s\n", spec.Name, spec.Kind, actionSource(spec))
			for _, tr := range spec.Triggers {
				fmt.Fprintf(w, "      %q → %v\n", tr.Pattern, tr.Events)
			}
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Hash: %s\n", result.Hash)

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote compiled workflow to %s\n", outputFile)
	}

	return nil
}

// actionSource returns the command, file or module an action runs.
func actionSource(spec ir.ActionSpec) string {
	switch spec.Kind {
	case ir.KindListener:
		return spec.File
	case ir.KindModule:
		return spec.Module
	default:
		return spec.Cmd
	}
}

// writeWorkflowToFile writes the compilation result to a file.
func writeWorkflowToFile(result *CompilationResult, filename string) error {
	// Use standard JSON with indentation for readability
	// (canonical JSON without indentation is used only for hashing)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling workflow: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
