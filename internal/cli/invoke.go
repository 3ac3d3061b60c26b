package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/specforge/internal/artifact"
	"github.com/roach88/specforge/internal/ir"
	"github.com/roach88/specforge/internal/sandbox"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	OutputDir   string
	Args        string
	Sandbox     string
	ExecTimeout time.Duration
}

// InvokeResult is the JSON payload of the invoke command.
type InvokeResult struct {
	SpecID string     `json:"spec_id"`
	Args   ir.IRArray `json:"args"`
	Result ir.IRValue `json:"result"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <specId>",
		Short: "Run a published function",
		Long: `Run the published artifact for a spec in the sandbox and print its result.

Arguments are a JSON array, passed positionally.

Example:
  specforge invoke addNumbers --args '[1, 2]'
  specforge invoke mergeSortedArrays --args '[[1,3],[2]]' --sandbox process`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", DefaultOutputDir, "directory holding published artifacts")
	cmd.Flags().StringVar(&opts.Args, "args", "[]", "arguments as a JSON array")
	cmd.Flags().StringVar(&opts.Sandbox, "sandbox", SandboxInProcess, "candidate executor (inproc|process)")
	cmd.Flags().DurationVar(&opts.ExecTimeout, "exec-timeout", sandbox.DefaultTimeout, "time limit for the call")

	return cmd
}

func runInvoke(cmd *cobra.Command, opts *InvokeOptions, specID string) error {
	out := newFormatter(cmd, opts.RootOptions)

	raw, err := ir.UnmarshalIRValue([]byte(opts.Args))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --args JSON", err)
	}
	args, ok := raw.(ir.IRArray)
	if !ok {
		return NewExitError(ExitCommandError, "--args must be a JSON array")
	}

	path := artifact.Path(opts.OutputDir, specID)
	art, err := artifact.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("no published artifact for %q (looked in %s)", specID, path))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read artifact", err)
	}
	if art.SpecID != specID {
		return NewExitError(ExitCommandError, fmt.Sprintf("artifact %s belongs to spec %q", path, art.SpecID))
	}
	out.VerboseLog("invoking %s from %s (fingerprint %s)", specID, path, art.Fingerprint)

	exec, err := newExecutor(opts.Sandbox, opts.ExecTimeout)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid sandbox", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	result, err := exec.Invoke(ctx, art.Source, args)
	if err != nil {
		if out.JSON() {
			out.Error(ErrCodeInvoke, err.Error(), nil)
		}
		return WrapExitError(ExitFailure, "invocation failed", err)
	}

	if out.JSON() {
		return out.Success(InvokeResult{SpecID: specID, Args: args, Result: result})
	}
	data, err := ir.MarshalIRValue(result)
	if err != nil {
		return WrapExitError(ExitFailure, "result is not representable", err)
	}
	fmt.Fprintln(out.Writer, string(data))
	return nil
}
