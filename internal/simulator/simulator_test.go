package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseOutputCompletePayload(t *testing.T) {
	output := []byte(`[cre] compiling workflow risk-assessment
[cre] simulating against forked state
RISK_ASSESSMENT: {"riskScore": 72.5, "riskLevel": "high", "status": "HIGH", "volatility": 0.08, "factors": ["oracle deviation"]}
[cre] done in 3.2s
`)
	assessment, err := ParseOutput(output)
	require.NoError(t, err)
	require.InDelta(t, 72.5, assessment.RiskScore, 1e-9)
	require.Equal(t, "high", assessment.RiskLevel)
	require.Equal(t, "HIGH", assessment.Status)
	require.NotNil(t, assessment.Volatility)
	require.Equal(t, "simulation", assessment.Source)
}

func TestParseOutputSalvagesTruncatedJSON(t *testing.T) {
	output := []byte(`RISK_ASSESSMENT: {"riskScore": 88, "riskLevel": "high", "status": "CRITICAL", "factors": ["liqu`)

	assessment, err := ParseOutput(output)
	require.NoError(t, err)
	require.InDelta(t, 88, assessment.RiskScore, 1e-9)
	require.Equal(t, "high", assessment.RiskLevel)
	require.Equal(t, "CRITICAL", assessment.Status)
}

func TestParseOutputSalvageNormalizesMissingFields(t *testing.T) {
	output := []byte(`RISK_ASSESSMENT: {"riskScore": 42, "factors": ["trunc`)

	assessment, err := ParseOutput(output)
	require.NoError(t, err)
	require.Equal(t, "medium", assessment.RiskLevel)
	require.Equal(t, "MEDIUM", assessment.Status)
}

func TestParseOutputNoMarker(t *testing.T) {
	_, err := ParseOutput([]byte("workflow finished without emitting an assessment\n"))
	require.ErrorIs(t, err, ErrNoAssessment)
}

func TestParseOutputUnsalvageablePayload(t *testing.T) {
	_, err := ParseOutput([]byte(`RISK_ASSESSMENT: not even close to json`))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoAssessment)
}

type fakeRunner struct {
	output []byte
	err    error
	args   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.args = append([]string{name}, args...)
	return f.output, f.err
}

func TestSimulatePassesWorkflowArguments(t *testing.T) {
	runner := &fakeRunner{output: []byte(`RISK_ASSESSMENT: {"riskScore": 10}`)}
	sim := New(Options{Binary: "cre", Workflow: "risk-assessment", Timeout: time.Second}, zerolog.Nop())
	sim.runner = runner

	assessment, err := sim.Simulate(context.Background(), "0xabc")
	require.NoError(t, err)
	require.InDelta(t, 10, assessment.RiskScore, 1e-9)
	require.Equal(t, []string{"cre", "workflow", "simulate", "risk-assessment", "--target", "0xabc"}, runner.args)
}

func TestSimulateNonzeroExitWithAssessment(t *testing.T) {
	runner := &fakeRunner{
		output: []byte(`RISK_ASSESSMENT: {"riskScore": 95, "status": "CRITICAL"}`),
		err:    errors.New("exit status 2"),
	}
	sim := New(Options{}, zerolog.Nop())
	sim.runner = runner

	assessment, err := sim.Simulate(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Equal(t, "CRITICAL", assessment.Status)
}

func TestSimulateNonzeroExitWithoutAssessment(t *testing.T) {
	runner := &fakeRunner{output: []byte("panic: boom"), err: errors.New("exit status 1")}
	sim := New(Options{}, zerolog.Nop())
	sim.runner = runner

	_, err := sim.Simulate(context.Background(), "0xabc")
	require.Error(t, err)
}
