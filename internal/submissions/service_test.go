package submissions

import (
	"context"
	"errors"
	"testing"

	"algojudge/internal/db"
	"algojudge/internal/problems"
	"algojudge/pkg/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := db.NewWithDB(gdb)
	require.NoError(t, err)
	return store
}

type fakeProblems struct {
	byID map[string]*models.Problem
}

func (f *fakeProblems) GetProblem(_ context.Context, id string) (*models.Problem, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, problems.ErrProblemNotFound
}

type fakeQueue struct {
	jobs []*models.Job
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, job *models.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func validParens() *models.Problem {
	return &models.Problem{
		ID:    "p-1",
		Title: "Valid Parentheses",
		TestCases: []models.TestCase{
			{ID: "t1", Input: `"()"`, ExpectedOutput: "true"},
			{ID: "t2", Input: `"([)]"`, ExpectedOutput: "false"},
		},
		CodeStubs: []models.CodeStub{
			{Language: "PYTHON", UserSnippet: "def validParentheses(s):"},
			{Language: "CPP", StartSnippet: "class Solution {\npublic:",
				UserSnippet: "bool validParentheses(string s)", EndSnippet: "};"},
		},
	}
}

func newTestService(t *testing.T) (*Service, *db.Store, *fakeQueue) {
	t.Helper()
	store := newTestStore(t)
	q := &fakeQueue{}
	svc := NewService(store, &fakeProblems{byID: map[string]*models.Problem{"p-1": validParens()}}, q)
	return svc, store, q
}

func TestCreatePersistsAndEnqueues(t *testing.T) {
	svc, store, q := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, "user-1", "p-1", "def validParentheses(s):\n    return True", "python")
	require.NoError(t, err)

	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, models.StatusPending, sub.Status)
	assert.Equal(t, models.LangPython, sub.Language)
	assert.Equal(t, 2, sub.TotalCount)
	assert.Contains(t, sub.Code, "return True")

	persisted, err := store.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, persisted.Status)

	require.Len(t, q.jobs, 1)
	job := q.jobs[0]
	assert.Equal(t, sub.ID, job.SubmissionID)
	assert.Equal(t, "user-1", job.UserID)
	assert.Len(t, job.TestCases, 2)
	assert.Len(t, job.Problem.CodeStubs, 2)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		problemID, code, lang string
	}{
		{"", "code", "python"},
		{"p-1", "", "python"},
		{"p-1", "code", ""},
		{"p-1", "code", "cobol"},
	}
	for _, c := range cases {
		_, err := svc.Create(ctx, "user-1", c.problemID, c.code, c.lang)
		assert.True(t, isValidation(err), "%+v should be a validation error, got %v", c, err)
	}
}

func TestCreateProblemNotFound(t *testing.T) {
	svc, store, q := newTestService(t)

	_, err := svc.Create(context.Background(), "user-1", "missing", "code", "python")
	assert.ErrorIs(t, err, problems.ErrProblemNotFound)

	subs, err := store.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, subs, "no submission persisted on 404")
	assert.Empty(t, q.jobs, "no job enqueued on 404")
}

func TestCreateStubNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	// The fixture has no Java stub.
	_, err := svc.Create(context.Background(), "user-1", "p-1", "code", "java")
	assert.ErrorIs(t, err, ErrStubNotFound)
}

func TestCreateEnqueueFailureStillSucceeds(t *testing.T) {
	store := newTestStore(t)
	q := &fakeQueue{err: errors.New("redis down")}
	svc := NewService(store, &fakeProblems{byID: map[string]*models.Problem{"p-1": validParens()}}, q)

	sub, err := svc.Create(context.Background(), "user-1", "p-1", "code", "python")
	require.NoError(t, err, "submission persists even when enqueue fails")

	persisted, err := store.GetSubmission(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, persisted.Status)
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, "user-1", "p-1", "code", "python")
	require.NoError(t, err)

	got, err := svc.Get(ctx, "user-1", sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)

	_, err = svc.Get(ctx, "user-2", sub.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, "user-1", "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}
