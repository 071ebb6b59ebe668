package submissions

import (
	"context"
	"errors"
	"sync"
	"time"

	"algojudge/internal/db"
	"algojudge/internal/executor"
	"algojudge/internal/logging"
	"algojudge/internal/metrics"
	"algojudge/internal/push"
	"algojudge/internal/queue"
	"algojudge/pkg/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// dequeueWait bounds each blocking queue pop so shutdown is responsive.
const dequeueWait = 5 * time.Second

// Worker consumes grading jobs, runs them through the executor, and
// advances the submission state machine.
type Worker struct {
	store       *db.Store
	queue       *queue.Queue
	exec        *executor.Executor
	publisher   push.Publisher
	concurrency int
}

func NewWorker(store *db.Store, q *queue.Queue, exec *executor.Executor, publisher push.Publisher, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		store:       store,
		queue:       q,
		exec:        exec,
		publisher:   publisher,
		concurrency: concurrency,
	}
}

// Run requeues jobs stranded by a previous crash and then consumes until
// the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if _, err := w.queue.RequeueStale(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.consume(ctx, id)
		}(i)
	}
	wg.Wait()
	return nil
}

func (w *Worker) consume(ctx context.Context, id int) {
	log := logging.L().With(zap.Int("worker", id))
	log.Info("worker consuming")
	for {
		if ctx.Err() != nil {
			return
		}
		job, payload, err := w.queue.Dequeue(ctx, dequeueWait)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		metrics.QueueJobs.WithLabelValues("claimed").Inc()
		w.Process(ctx, job)
		if err := w.queue.Ack(ctx, payload); err != nil {
			log.Error("ack failed", zap.String("submission_id", job.SubmissionID), zap.Error(err))
		} else {
			metrics.QueueJobs.WithLabelValues("acked").Inc()
		}
	}
}

// Process grades one job. Every failure path lands the submission in a
// state the client can interpret; errors never propagate past here.
func (w *Worker) Process(ctx context.Context, job *models.Job) {
	log := logging.L().With(
		zap.String("submission_id", job.SubmissionID),
		zap.String("user_id", job.UserID),
		zap.String("language", string(job.Language)))

	tests := job.TestCases
	if len(tests) == 0 {
		tests = job.Problem.TestCases
	}
	total := len(tests)

	// Claim the submission. A terminal status here means the job was
	// redelivered after completion; drop it.
	_, err := w.store.UpdateSubmission(ctx, job.SubmissionID, func(sub *models.Submission) error {
		sub.Status = models.StatusRunning
		sub.TotalCount = total
		return nil
	})
	if errors.Is(err, db.ErrTerminalState) {
		metrics.QueueJobs.WithLabelValues("dropped").Inc()
		log.Info("dropping redelivered job for terminal submission")
		return
	}
	if errors.Is(err, db.ErrNotFound) {
		log.Warn("job references missing submission")
		return
	}
	if err != nil {
		log.Error("claim failed", zap.Error(err))
		return
	}

	w.publish(ctx, job, models.ProgressEvent{
		SubmissionID: job.SubmissionID,
		Status:       models.StatusRunning,
		Progress:     models.Progress{Completed: 0, Total: total},
		Percent:      0,
		TotalCount:   total,
	})

	if total == 0 {
		w.fail(ctx, job, errors.New("job carries no test cases"))
		return
	}
	stub, ok := job.Problem.StubFor(job.Language)
	if !ok {
		w.fail(ctx, job, errors.New("stub not found for language "+string(job.Language)))
		return
	}

	var (
		results []models.PerTestResult
		passed  int
	)
	onResult := func(r models.PerTestResult) {
		results = append(results, r)
		if r.Passed {
			passed++
		}

		w.persistProgress(ctx, job.SubmissionID, results, passed, total)

		// The final executed test is reported by the terminal event;
		// fatal failures short-circuit straight to it as well.
		status := interimStatus(results)
		if len(results) == total || status == models.StatusRE || status == models.StatusTLE {
			return
		}
		w.publish(ctx, job, models.ProgressEvent{
			SubmissionID: job.SubmissionID,
			Status:       status,
			Progress:     models.Progress{Completed: len(results), Total: total},
			Percent:      models.Percent(passed, total),
			PassedCount:  passed,
			TotalCount:   total,
			Results:      results,
		})
	}

	outcome, err := w.exec.Execute(ctx, job.Language, stub, job.UserCode, tests, onResult)
	if err != nil {
		w.fail(ctx, job, err)
		return
	}

	finalPassed := 0
	for _, r := range outcome.Results {
		if r.Passed {
			finalPassed++
		}
	}

	_, err = w.store.UpdateSubmission(ctx, job.SubmissionID, func(sub *models.Submission) error {
		sub.Status = outcome.Verdict
		sub.Results = outcome.Results
		sub.TotalCount = total
		sub.Recount()
		return nil
	})
	if err != nil {
		log.Error("persist verdict failed", zap.Error(err))
		return
	}

	metrics.SubmissionsTotal.WithLabelValues(string(outcome.Verdict), string(job.Language)).Inc()
	w.publish(ctx, job, models.ProgressEvent{
		SubmissionID: job.SubmissionID,
		Status:       outcome.Verdict,
		Progress:     models.Progress{Completed: total, Total: total},
		Percent:      models.Percent(finalPassed, total),
		PassedCount:  finalPassed,
		TotalCount:   total,
		Results:      outcome.Results,
	})
	log.Info("submission graded",
		zap.String("verdict", string(outcome.Verdict)),
		zap.Int("passed", finalPassed),
		zap.Int("total", total))
}

// interimStatus classifies the event status for a mid-run update: still
// Running while everything passes, otherwise the verdict so far.
func interimStatus(results []models.PerTestResult) models.Status {
	status := models.StatusRunning
	for _, r := range results {
		switch {
		case r.Passed:
		case r.Error == executor.TimeoutError:
			return models.StatusTLE
		case r.Error != "":
			return models.StatusRE
		default:
			status = models.StatusWA
		}
	}
	return status
}

// persistProgress stores the cumulative results so polling clients see
// grading advance. Failures are logged only; the terminal write is the
// one that matters.
func (w *Worker) persistProgress(ctx context.Context, id string, results []models.PerTestResult, passed, total int) {
	_, err := w.store.UpdateSubmission(ctx, id, func(sub *models.Submission) error {
		sub.Results = append([]models.PerTestResult(nil), results...)
		sub.PassedCount = passed
		sub.TotalCount = total
		sub.Percent = models.Percent(passed, total)
		return nil
	})
	if err != nil {
		logging.L().Warn("persist progress failed", zap.String("submission_id", id), zap.Error(err))
	}
}

// fail moves the submission to Failed and tells the user why.
func (w *Worker) fail(ctx context.Context, job *models.Job, cause error) {
	logging.L().Error("grading failed",
		zap.String("submission_id", job.SubmissionID), zap.Error(cause))

	_, err := w.store.UpdateSubmission(ctx, job.SubmissionID, func(sub *models.Submission) error {
		sub.Status = models.StatusFailed
		return nil
	})
	if err != nil && !errors.Is(err, db.ErrTerminalState) {
		logging.L().Error("persist Failed status failed",
			zap.String("submission_id", job.SubmissionID), zap.Error(err))
	}

	metrics.SubmissionsTotal.WithLabelValues(string(models.StatusFailed), string(job.Language)).Inc()
	w.publish(ctx, job, models.ProgressEvent{
		SubmissionID: job.SubmissionID,
		Status:       models.StatusFailed,
		Error:        cause.Error(),
	})
}

func (w *Worker) publish(ctx context.Context, job *models.Job, event models.ProgressEvent) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(ctx, job.UserID, job.SubmissionID, event); err != nil {
		logging.L().Warn("publish progress failed",
			zap.String("submission_id", job.SubmissionID), zap.Error(err))
	}
}
