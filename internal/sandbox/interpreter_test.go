package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/specforge/internal/ir"
)

const addSource = `func(a, b int) map[string]int { return map[string]int{"result": a + b} }`

func invoke(t *testing.T, source string, args ...ir.IRValue) (ir.IRValue, error) {
	t.Helper()
	return NewInterpreter(time.Second).Invoke(context.Background(), source, args)
}

func requirePhase(t *testing.T, err error, want Phase) *ExecutionError {
	t.Helper()
	require.Error(t, err)
	ee, ok := AsExecutionError(err)
	require.True(t, ok, "expected ExecutionError, got %T: %v", err, err)
	assert.Equal(t, want, ee.Phase, "error: %v", err)
	return ee
}

func TestInterpreterAddNumbers(t *testing.T) {
	got, err := invoke(t, addSource, ir.IRInt(1), ir.IRInt(2))
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"result": ir.IRInt(3)}, got)
}

func TestInterpreterUsesAllowedPackages(t *testing.T) {
	src := `func(a, b []int) map[string][]int {
		out := append(append([]int{}, a...), b...)
		sort.Ints(out)
		return map[string][]int{"result": out}
	}`
	got, err := invoke(t, src,
		ir.IRArray{ir.IRInt(1), ir.IRInt(3), ir.IRInt(7)},
		ir.IRArray{ir.IRInt(2), ir.IRInt(4), ir.IRInt(6)})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"result": ir.IRArray{
		ir.IRInt(1), ir.IRInt(2), ir.IRInt(3), ir.IRInt(4), ir.IRInt(6), ir.IRInt(7),
	}}, got)

	got, err = invoke(t, `func(s string) string { return strings.ToUpper(s) }`, ir.IRString("go"))
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("GO"), got)
}

func TestInterpreterErrorResult(t *testing.T) {
	src := `func(s string) (int, error) { return strconv.Atoi(s) }`

	got, err := invoke(t, src, ir.IRString("42"))
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(42), got)

	_, err = invoke(t, src, ir.IRString("x"))
	requirePhase(t, err, PhaseError)
}

func TestInterpreterReportsFaultDetail(t *testing.T) {
	tests := []struct {
		name   string
		source string
		phase  Phase
		detail string
	}{
		{"panic value", `func(a int) int { panic("boom") }`, PhasePanic, "boom"},
		{"returned error", `func(a int) (int, error) { return 0, errors.New("bad input") }`, PhaseError, "bad input"},
		{"runtime fault", `func(a int) int { var s []int; return s[a] }`, PhasePanic, "index out of range"},
		{"argument decode", `func(a string) string { return a }`, PhaseArgs, "argument 0 (a)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, tt.source, ir.IRInt(3))
			ee := requirePhase(t, err, tt.phase)
			assert.Contains(t, ee.Err.Error(), tt.detail)
		})
	}
}

func TestInterpreterVariadic(t *testing.T) {
	src := `func(xs ...int) int {
		t := 0
		for _, x := range xs {
			t += x
		}
		return t
	}`
	got, err := invoke(t, src, ir.IRInt(1), ir.IRInt(2), ir.IRInt(3))
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(6), got)

	got, err = invoke(t, src)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(0), got)
}

func TestInterpreterNumbers(t *testing.T) {
	half := `func(a float64) float64 { return a / 2 }`

	got, err := invoke(t, half, ir.IRInt(3))
	require.NoError(t, err)
	assert.Equal(t, ir.IRFloat(1.5), got)

	got, err = invoke(t, half, ir.IRInt(4))
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(2), got, "integral results are integers")
}

func TestInterpreterFailurePhases(t *testing.T) {
	tests := []struct {
		name   string
		source string
		args   []ir.IRValue
		phase  Phase
	}{
		{"syntax error", `func( {`, nil, PhaseParse},
		{"not a function", `1 + 2`, nil, PhaseParse},
		{"no result", `func() {}`, nil, PhaseParse},
		{"three results", `func() (int, int, error) { return 0, 0, nil }`, nil, PhaseParse},
		{"forbidden package", `func() string { return os.Getenv("HOME") }`, nil, PhaseParse},
		{"too few args", addSource, []ir.IRValue{ir.IRInt(1)}, PhaseArgs},
		{"too many args", addSource, []ir.IRValue{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3)}, PhaseArgs},
		{"arg kind mismatch", addSource, []ir.IRValue{ir.IRString("1"), ir.IRInt(2)}, PhaseArgs},
		{"explicit panic", `func() int { panic("boom") }`, nil, PhasePanic},
		{"index out of range", `func(xs []int) int { return xs[5] }`, []ir.IRValue{ir.IRArray{}}, PhasePanic},
		{"unencodable result", `func() float64 { return math.NaN() }`, nil, PhaseResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, tt.source, tt.args...)
			requirePhase(t, err, tt.phase)
		})
	}
}

func TestInterpreterTimeoutStopsCandidate(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	in := NewInterpreter(100 * time.Millisecond)
	start := time.Now()
	_, err := in.Invoke(context.Background(), `func(n int) int { for { n++ } }`, []ir.IRValue{ir.IRInt(0)})
	requirePhase(t, err, PhaseTimeout)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestInterpreterHonoursCallerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewInterpreter(time.Second).Invoke(ctx, addSource, []ir.IRValue{ir.IRInt(1), ir.IRInt(2)})
	requirePhase(t, err, PhaseTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}
