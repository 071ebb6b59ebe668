package problems

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProblemWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/p-1", r.URL.Path)
		w.Write([]byte(`{"data":{"id":"p-1","title":"Two Sum","testcases":[{"input":"[1,2],3","expectedOutput":"true"}]}}`))
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL).GetProblem(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Two Sum", p.Title)
	require.Len(t, p.TestCases, 1)
	assert.Equal(t, "[1,2],3", p.TestCases[0].Input)
}

func TestGetProblemBare(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"p-2","title":"Palindrome"}`))
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL).GetProblem(context.Background(), "p-2")
	require.NoError(t, err)
	assert.Equal(t, "Palindrome", p.Title)
}

func TestGetProblemNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetProblem(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProblemNotFound)
}

func TestGetProblemServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetProblem(context.Background(), "p-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProblemNotFound)
}
