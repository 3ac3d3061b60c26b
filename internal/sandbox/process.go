package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/roach88/specforge/internal/ir"
)

// DefaultMaxOutput caps what a child may write to stdout.
const DefaultMaxOutput = 1 << 20

// killGrace is extra time given to the child beyond its own timeout before
// it is killed from the outside.
const killGrace = time.Second

// Request is the message a Process sends to its child on stdin.
type Request struct {
	Source    string     `json:"source"`
	Args      ir.IRArray `json:"args"`
	TimeoutMS int64      `json:"timeout_ms"`
}

// Response is the child's reply on stdout. Exactly one of Result or Error
// is set.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Phase  Phase           `json:"phase,omitempty"`
}

// Process runs each invocation in a child process that serves a single
// Request (see Serve). The child starts with an empty environment and is
// killed if it outlives its timeout.
type Process struct {
	// Path and Args name the child command. The default is the running
	// executable with the hidden "sandbox" command.
	Path string
	Args []string

	// Env is the child's environment. Nil means empty, not inherited.
	Env []string

	Timeout   time.Duration
	MaxOutput int
}

// NewProcess returns a Process that re-executes the current binary.
func NewProcess(timeout time.Duration) (*Process, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return &Process{Path: self, Args: []string{"sandbox"}, Timeout: timeout}, nil
}

// Invoke implements Executor.
func (p *Process) Invoke(ctx context.Context, source string, args []ir.IRValue) (ir.IRValue, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOut := p.MaxOutput
	if maxOut <= 0 {
		maxOut = DefaultMaxOutput
	}

	req, err := json.Marshal(Request{Source: source, Args: ir.IRArray(args), TimeoutMS: timeout.Milliseconds()})
	if err != nil {
		return nil, newError(PhaseArgs, "encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout+killGrace)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Path, p.Args...)
	cmd.Env = p.Env
	if cmd.Env == nil {
		cmd.Env = []string{}
	}
	cmd.Stdin = bytes.NewReader(req)
	stdout := &cappedBuffer{max: maxOut}
	stderr := &cappedBuffer{max: 4096}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &ExecutionError{Phase: PhaseTimeout, Err: ctxErr}
	}
	if stdout.overflow {
		return nil, newError(PhaseResult, "child output exceeds %d bytes", maxOut)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		if runErr != nil {
			return nil, newError(PhaseProcess, "child failed: %w: %s", runErr, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, newError(PhaseProcess, "decode child response: %w", err)
	}
	if resp.Error != "" {
		phase := resp.Phase
		if phase == "" {
			phase = PhaseProcess
		}
		return nil, &ExecutionError{Phase: phase, Err: errors.New(resp.Error)}
	}
	if runErr != nil {
		return nil, newError(PhaseProcess, "child failed: %w", runErr)
	}

	v, err := ir.UnmarshalIRValue(resp.Result)
	if err != nil {
		return nil, newError(PhaseResult, "decode result: %w", err)
	}
	return v, nil
}

// Serve reads one Request from r, runs it with an Interpreter, and writes
// the Response to w. Only I/O failures are returned; execution failures are
// part of the Response.
func Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	var req Request
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return writeResponse(w, Response{Error: fmt.Sprintf("decode request: %v", err), Phase: PhaseProcess})
	}

	in := NewInterpreter(time.Duration(req.TimeoutMS) * time.Millisecond)
	v, err := in.Invoke(ctx, req.Source, req.Args)
	if err != nil {
		resp := Response{Error: err.Error(), Phase: PhaseProcess}
		if ee, ok := AsExecutionError(err); ok {
			resp.Error = ee.Err.Error()
			resp.Phase = ee.Phase
		}
		return writeResponse(w, resp)
	}

	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return writeResponse(w, Response{Error: err.Error(), Phase: PhaseResult})
	}
	return writeResponse(w, Response{Result: data})
}

func writeResponse(w io.Writer, resp Response) error {
	return json.NewEncoder(w).Encode(resp)
}

// cappedBuffer keeps at most max bytes and records whether more arrived.
type cappedBuffer struct {
	bytes.Buffer
	max      int
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.Len()
	if len(p) > room {
		b.overflow = true
		if room > 0 {
			b.Buffer.Write(p[:room])
		}
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
