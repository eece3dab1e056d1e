// Package simulator runs the CRE workflow-simulation CLI and parses its
// assessment output.
package simulator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chainguard-sentinel/internal/risk"
)

// markerToken introduces the assessment payload on the CLI's stdout.
const markerToken = "RISK_ASSESSMENT:"

// ErrNoAssessment is returned when the CLI output carries no marker line.
var ErrNoAssessment = errors.New("simulator: no assessment in workflow output")

// Options parameterise the CLI invocation.
type Options struct {
	Binary   string
	Workflow string
	Timeout  time.Duration
}

// Runner abstracts command execution so parsing is testable without the CLI.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stdout
	err := cmd.Run()
	return stdout.Bytes(), err
}

// Simulator shells out to the oracle-simulation CLI.
type Simulator struct {
	opts   Options
	runner Runner
	logger zerolog.Logger
}

// New constructs a Simulator.
func New(opts Options, logger zerolog.Logger) *Simulator {
	if opts.Binary == "" {
		opts.Binary = "cre"
	}
	if opts.Workflow == "" {
		opts.Workflow = "risk-assessment"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Simulator{
		opts:   opts,
		runner: execRunner{},
		logger: logger.With().Str("component", "simulator").Logger(),
	}
}

// Simulate runs the workflow for one contract address and returns the
// parsed assessment.
func (s *Simulator) Simulate(ctx context.Context, address string) (*risk.Assessment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	output, err := s.runner.Run(ctx, s.opts.Binary, "workflow", "simulate", s.opts.Workflow, "--target", address)
	if err != nil {
		// The CLI exits nonzero on some recoverable simulation paths while
		// still printing an assessment; only fail when parsing fails too.
		if assessment, parseErr := ParseOutput(output); parseErr == nil {
			s.logger.Warn().Err(err).Str("address", address).Msg("workflow exited nonzero but produced an assessment")
			return assessment, nil
		}
		return nil, fmt.Errorf("run %s workflow simulate: %w", s.opts.Binary, err)
	}

	return ParseOutput(output)
}

// ParseOutput scans CLI stdout line-by-line for the marker token and decodes
// the JSON payload after it. Truncated JSON is salvaged field-by-field.
func ParseOutput(output []byte) (*risk.Assessment, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, markerToken)
		if idx < 0 {
			continue
		}
		payload := strings.TrimSpace(line[idx+len(markerToken):])

		var assessment risk.Assessment
		if err := json.Unmarshal([]byte(payload), &assessment); err == nil {
			assessment.Source = "simulation"
			assessment.Normalize()
			return &assessment, nil
		}
		if salvaged, ok := salvageAssessment(payload); ok {
			return salvaged, nil
		}
		return nil, fmt.Errorf("simulator: unparseable assessment payload: %q", payload)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan workflow output: %w", err)
	}
	return nil, ErrNoAssessment
}

var (
	scorePattern  = regexp.MustCompile(`"riskScore"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
	levelPattern  = regexp.MustCompile(`"riskLevel"\s*:\s*"(low|medium|high)"`)
	statusPattern = regexp.MustCompile(`"status"\s*:\s*"(LOW|MEDIUM|HIGH|CRITICAL)"`)
	volPattern    = regexp.MustCompile(`"volatility"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
)

// salvageAssessment pulls the known fields out of a truncated or otherwise
// malformed JSON payload. A risk score is the minimum viable result.
func salvageAssessment(payload string) (*risk.Assessment, bool) {
	m := scorePattern.FindStringSubmatch(payload)
	if m == nil {
		return nil, false
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, false
	}

	assessment := &risk.Assessment{RiskScore: score, Source: "simulation"}
	if lm := levelPattern.FindStringSubmatch(payload); lm != nil {
		assessment.RiskLevel = lm[1]
	}
	if sm := statusPattern.FindStringSubmatch(payload); sm != nil {
		assessment.Status = sm[1]
	}
	if vm := volPattern.FindStringSubmatch(payload); vm != nil {
		if vol, err := strconv.ParseFloat(vm[1], 64); err == nil {
			assessment.Volatility = &vol
		}
	}
	assessment.Normalize()
	return assessment, true
}
