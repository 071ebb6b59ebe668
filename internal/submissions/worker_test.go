package submissions

import (
	"context"
	"testing"
	"time"

	"algojudge/internal/db"
	"algojudge/internal/executor"
	"algojudge/internal/harness"
	"algojudge/internal/sandbox"
	"algojudge/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	byStdin map[string]*sandbox.RunResult
	calls   int
}

func (s *stubRunner) Run(_ context.Context, req sandbox.RunRequest) (*sandbox.RunResult, error) {
	s.calls++
	if res, ok := s.byStdin[req.Stdin]; ok {
		return res, nil
	}
	return &sandbox.RunResult{}, nil
}

type capturePublisher struct {
	events []models.ProgressEvent
	users  []string
}

func (c *capturePublisher) Publish(_ context.Context, userID, _ string, event models.ProgressEvent) error {
	c.users = append(c.users, userID)
	c.events = append(c.events, event)
	return nil
}

func newTestWorker(t *testing.T, runner sandbox.Runner) (*Worker, *db.Store, *capturePublisher) {
	t.Helper()
	store := newTestStore(t)
	pub := &capturePublisher{}
	exec := executor.New(runner, harness.NewBuilder(4*time.Second, 10*time.Second))
	return NewWorker(store, nil, exec, pub, 1), store, pub
}

func seedSubmission(t *testing.T, store *db.Store, status models.Status) *models.Job {
	t.Helper()
	problem := validParens()
	sub := &models.Submission{
		ID:         "sub-1",
		UserID:     "user-1",
		ProblemID:  problem.ID,
		Language:   models.LangPython,
		Status:     status,
		TotalCount: len(problem.TestCases),
	}
	require.NoError(t, store.CreateSubmission(context.Background(), sub))
	return &models.Job{
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		ProblemID:    problem.ID,
		Language:     models.LangPython,
		UserCode:     "def validParentheses(s):\n    ...",
		Problem:      *problem,
		TestCases:    problem.TestCases,
	}
}

func TestProcessHappyPath(t *testing.T) {
	runner := &stubRunner{byStdin: map[string]*sandbox.RunResult{
		"\"()\"\n":   {Stdout: "true\n"},
		"\"([)]\"\n": {Stdout: "false\n"},
	}}
	worker, store, pub := newTestWorker(t, runner)
	job := seedSubmission(t, store, models.StatusPending)

	worker.Process(context.Background(), job)

	sub, err := store.GetSubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, sub.Status)
	assert.Equal(t, 2, sub.PassedCount)
	assert.Equal(t, 100, sub.Percent)
	require.Len(t, sub.Results, 2)
	assert.Equal(t, "true", sub.Results[0].Output)
	assert.Equal(t, "false", sub.Results[1].Output)

	// Two Running events then one Success, percent 0/50/100.
	require.Len(t, pub.events, 3)
	assert.Equal(t, models.StatusRunning, pub.events[0].Status)
	assert.Equal(t, models.StatusRunning, pub.events[1].Status)
	assert.Equal(t, models.StatusSuccess, pub.events[2].Status)
	assert.Equal(t, []int{0, 50, 100}, []int{pub.events[0].Percent, pub.events[1].Percent, pub.events[2].Percent})
	for _, u := range pub.users {
		assert.Equal(t, "user-1", u)
	}
}

func TestProcessProgressCompletedIsMonotonic(t *testing.T) {
	runner := &stubRunner{byStdin: map[string]*sandbox.RunResult{
		"\"()\"\n":   {Stdout: "true\n"},
		"\"([)]\"\n": {Stdout: "false\n"},
	}}
	worker, store, pub := newTestWorker(t, runner)
	job := seedSubmission(t, store, models.StatusPending)

	worker.Process(context.Background(), job)

	last := -1
	for _, e := range pub.events {
		assert.GreaterOrEqual(t, e.Progress.Completed, last)
		last = e.Progress.Completed
	}
}

func TestProcessWrongAnswerContinues(t *testing.T) {
	runner := &stubRunner{byStdin: map[string]*sandbox.RunResult{
		"\"()\"\n":   {Stdout: "false\n"},
		"\"([)]\"\n": {Stdout: "false\n"},
	}}
	worker, store, pub := newTestWorker(t, runner)
	job := seedSubmission(t, store, models.StatusPending)

	worker.Process(context.Background(), job)

	sub, err := store.GetSubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWA, sub.Status)
	assert.Equal(t, 1, sub.PassedCount)
	require.Len(t, sub.Results, 2)
	assert.False(t, sub.Results[0].Passed)
	assert.Empty(t, sub.Results[0].Error)
	assert.True(t, sub.Results[1].Passed)
	assert.Equal(t, 2, runner.calls, "no short circuit on WA")

	// The mid-run event already carries the WA verdict.
	require.Len(t, pub.events, 3)
	assert.Equal(t, models.StatusWA, pub.events[1].Status)
	assert.Equal(t, models.StatusWA, pub.events[2].Status)
}

func TestProcessRuntimeErrorShortCircuits(t *testing.T) {
	runner := &stubRunner{byStdin: map[string]*sandbox.RunResult{
		"\"()\"\n": {Stderr: "SyntaxError: invalid syntax", ExitCode: 1},
	}}
	worker, store, pub := newTestWorker(t, runner)
	job := seedSubmission(t, store, models.StatusPending)

	worker.Process(context.Background(), job)

	sub, err := store.GetSubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRE, sub.Status)
	require.Len(t, sub.Results, 2, "remaining results pre-filled")
	assert.Equal(t, sub.Results[0].Error, sub.Results[1].Error)
	assert.Equal(t, 1, runner.calls)

	// Initial Running plus a single terminal RE event.
	require.Len(t, pub.events, 2)
	assert.Equal(t, models.StatusRunning, pub.events[0].Status)
	assert.Equal(t, models.StatusRE, pub.events[1].Status)
	assert.Len(t, pub.events[1].Results, 2)
}

func TestProcessTimeout(t *testing.T) {
	runner := &stubRunner{byStdin: map[string]*sandbox.RunResult{
		"\"()\"\n": {TimedOut: true},
	}}
	worker, store, pub := newTestWorker(t, runner)
	job := seedSubmission(t, store, models.StatusPending)

	worker.Process(context.Background(), job)

	sub, err := store.GetSubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusTLE, sub.Status)
	assert.Equal(t, executor.TimeoutError, sub.Results[0].Error)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, models.StatusTLE, pub.events[len(pub.events)-1].Status)
}

func TestProcessRedeliveredTerminalJobIsDropped(t *testing.T) {
	runner := &stubRunner{}
	worker, store, pub := newTestWorker(t, runner)
	job := seedSubmission(t, store, models.StatusSuccess)

	worker.Process(context.Background(), job)

	sub, err := store.GetSubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, sub.Status)
	assert.Zero(t, runner.calls, "no containers launched")
	assert.Empty(t, pub.events, "no events for dropped jobs")
}

func TestProcessMissingStubFails(t *testing.T) {
	worker, store, pub := newTestWorker(t, &stubRunner{})
	job := seedSubmission(t, store, models.StatusPending)
	job.Language = models.LangJava
	job.Problem.CodeStubs = job.Problem.CodeStubs[:1]

	// Force the language past the stub set.
	require.NoError(t, func() error {
		_, err := store.UpdateSubmission(context.Background(), "sub-1", func(s *models.Submission) error {
			s.Language = models.LangJava
			return nil
		})
		return err
	}())

	worker.Process(context.Background(), job)

	sub, err := store.GetSubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, sub.Status)

	final := pub.events[len(pub.events)-1]
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Contains(t, final.Error, "stub not found")
}

func TestProcessRerunIsIdempotent(t *testing.T) {
	runner := &stubRunner{byStdin: map[string]*sandbox.RunResult{
		"\"()\"\n":   {Stdout: "true\n"},
		"\"([)]\"\n": {Stdout: "false\n"},
	}}
	worker, store, pub := newTestWorker(t, runner)
	job := seedSubmission(t, store, models.StatusPending)

	worker.Process(context.Background(), job)
	firstEvents := len(pub.events)
	worker.Process(context.Background(), job)

	sub, err := store.GetSubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, sub.Status)
	assert.Len(t, pub.events, firstEvents, "second delivery emits nothing")
	assert.Equal(t, 2, runner.calls, "second delivery runs nothing")
}
