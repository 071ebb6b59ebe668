// Package submissions is the lifecycle coordinator: it ingests
// submission requests, owns the Pending to terminal state machine, and
// drives grading from the queue.
package submissions

import (
	"context"
	"errors"
	"fmt"

	"algojudge/internal/db"
	"algojudge/internal/harness"
	"algojudge/internal/logging"
	"algojudge/internal/metrics"
	"algojudge/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrStubNotFound = errors.New("stub not found")
	ErrForbidden    = errors.New("not the submission owner")
)

// ValidationError marks request errors the ingress maps to HTTP 400.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ProblemFetcher is the read-only problem catalog dependency.
type ProblemFetcher interface {
	GetProblem(ctx context.Context, id string) (*models.Problem, error)
}

// Enqueuer hands a job to the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

// Service implements the ingress half of the coordinator.
type Service struct {
	store    *db.Store
	problems ProblemFetcher
	queue    Enqueuer
}

func NewService(store *db.Store, problems ProblemFetcher, queue Enqueuer) *Service {
	return &Service{store: store, problems: problems, queue: queue}
}

// Create validates the request, persists a Pending submission, and
// enqueues the grading job. Enqueue is fire and forget: once the
// submission is persisted the request succeeds even if the queue is
// down, since an operator can re-enqueue from the record.
func (s *Service) Create(ctx context.Context, userID, problemID, userCode, language string) (*models.Submission, error) {
	switch {
	case problemID == "":
		return nil, validationf("problemId is required")
	case userCode == "":
		return nil, validationf("userCode is required")
	case language == "":
		return nil, validationf("language is required")
	}

	lang, err := models.ParseLanguage(language)
	if err != nil {
		return nil, validationf("%v", err)
	}

	problem, err := s.problems.GetProblem(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if len(problem.TestCases) == 0 {
		return nil, validationf("problem %s has no test cases", problemID)
	}
	stub, ok := problem.StubFor(lang)
	if !ok {
		return nil, ErrStubNotFound
	}

	sub := &models.Submission{
		ID:         uuid.NewString(),
		UserID:     userID,
		ProblemID:  problemID,
		Code:       harness.FullSource(stub, userCode),
		Language:   lang,
		Status:     models.StatusPending,
		TotalCount: len(problem.TestCases),
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("persist submission: %w", err)
	}

	job := &models.Job{
		SubmissionID: sub.ID,
		UserID:       userID,
		ProblemID:    problemID,
		Language:     lang,
		UserCode:     userCode,
		Problem:      *problem,
		TestCases:    problem.TestCases,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		logging.L().Error("enqueue failed, submission persisted without job",
			zap.String("submission_id", sub.ID), zap.Error(err))
	} else {
		metrics.QueueJobs.WithLabelValues("enqueued").Inc()
	}
	return sub, nil
}

// Get returns a submission if the caller owns it.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrForbidden
	}
	return sub, nil
}

// ListForUser returns the caller's submissions, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Submission, error) {
	return s.store.ListByUser(ctx, userID)
}
