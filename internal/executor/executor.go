// Package executor grades one submission: it runs every test case in
// order through the sandbox, classifies each outcome, and derives the
// verdict.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"algojudge/internal/harness"
	"algojudge/internal/logging"
	"algojudge/internal/metrics"
	"algojudge/internal/sandbox"
	"algojudge/pkg/models"

	"go.uber.org/zap"
)

// TimeoutError is the error message carried by timed-out results.
const TimeoutError = "Time Limit Exceeded"

// Outcome is the full grading result of one submission.
type Outcome struct {
	Results []models.PerTestResult
	Verdict models.Status
	// ShortCircuited is true when a fatal failure pre-filled the
	// remaining results without launching their containers.
	ShortCircuited bool
}

// Executor runs submissions through the sandbox.
type Executor struct {
	runner  sandbox.Runner
	builder *harness.Builder
}

func New(runner sandbox.Runner, builder *harness.Builder) *Executor {
	return &Executor{runner: runner, builder: builder}
}

// Execute grades userCode against the test cases sequentially. onResult
// is invoked once per test case that actually ran, in order; pre-filled
// results after a short circuit do not trigger callbacks.
//
// Short-circuit policy: a runtime error or timeout stops execution and
// stamps the remaining results with the same error. A wrong answer does
// not; users want to see every mismatched case.
func (e *Executor) Execute(
	ctx context.Context,
	lang models.Language,
	stub models.CodeStub,
	userCode string,
	tests []models.TestCase,
	onResult func(models.PerTestResult),
) (*Outcome, error) {
	inv, err := e.builder.Build(lang, stub, userCode)
	if err != nil {
		return nil, fmt.Errorf("build harness: %w", err)
	}

	outcome := &Outcome{Verdict: models.StatusSuccess}
	for i, tc := range tests {
		start := time.Now()
		result, status := e.runOne(ctx, inv, tc)
		metrics.TestCaseDuration.WithLabelValues(string(lang)).Observe(time.Since(start).Seconds())
		outcome.Results = append(outcome.Results, result)
		if onResult != nil {
			onResult(result)
		}

		if status == models.StatusRE || status == models.StatusTLE {
			outcome.Verdict = status
			outcome.ShortCircuited = i < len(tests)-1
			for _, rest := range tests[i+1:] {
				outcome.Results = append(outcome.Results, models.PerTestResult{
					TestCase: rest,
					Passed:   false,
					Error:    result.Error,
				})
			}
			return outcome, nil
		}
		if status == models.StatusWA && outcome.Verdict == models.StatusSuccess {
			outcome.Verdict = models.StatusWA
		}
	}
	return outcome, nil
}

// runOne executes a single test case and classifies the outcome.
func (e *Executor) runOne(ctx context.Context, inv *harness.Invocation, tc models.TestCase) (models.PerTestResult, models.Status) {
	result := models.PerTestResult{TestCase: tc}

	run, err := e.runner.Run(ctx, sandbox.RunRequest{
		Image:    inv.Image,
		Cmd:      inv.Cmd,
		Stdin:    tc.Input + "\n",
		Deadline: inv.Deadline,
	})
	if err != nil {
		// Pull and create/start failures surface on the result, not as
		// a worker crash.
		logging.L().Error("sandbox run failed", zap.Error(err))
		result.Error = "image unavailable: " + err.Error()
		return result, models.StatusRE
	}

	switch {
	case run.TimedOut:
		result.Output = strings.TrimSpace(run.Stdout)
		result.Error = TimeoutError
		return result, models.StatusTLE
	case strings.TrimSpace(run.Stderr) != "":
		result.Output = strings.TrimSpace(run.Stdout)
		result.Error = strings.TrimSpace(run.Stderr)
		return result, models.StatusRE
	case run.ExitCode != 0:
		result.Output = strings.TrimSpace(run.Stdout)
		result.Error = fmt.Sprintf("exited with code %d", run.ExitCode)
		return result, models.StatusRE
	}

	result.Output = strings.TrimSpace(run.Stdout)
	if result.Output == strings.TrimSpace(tc.ExpectedOutput) {
		result.Passed = true
		return result, models.StatusSuccess
	}
	return result, models.StatusWA
}
