// Package models defines the persistent and wire-level types shared by
// the ingress API, the queue worker, and the progress channel.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a submission.
//
// Pending and Running are transient; every other status is terminal and
// a submission never leaves a terminal status.
type Status string

const (
	StatusPending Status = "Pending"
	StatusRunning Status = "Running"
	StatusSuccess Status = "Success"
	StatusWA      Status = "WA"
	StatusRE      Status = "RE"
	StatusTLE     Status = "TLE"
	StatusFailed  Status = "Failed"
)

// Terminal reports whether s is a sink state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusWA, StatusRE, StatusTLE, StatusFailed:
		return true
	}
	return false
}

// Language identifies a supported submission language.
type Language string

const (
	LangJava   Language = "JAVA"
	LangPython Language = "PYTHON"
	LangCpp    Language = "CPP"
)

// ParseLanguage normalizes user input into a Language.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JAVA":
		return LangJava, nil
	case "PYTHON", "PYTHON3", "PY":
		return LangPython, nil
	case "CPP", "C++":
		return LangCpp, nil
	}
	return "", fmt.Errorf("unknown language: %q", s)
}

// TestCase is one (input, expected output) pair of a problem.
type TestCase struct {
	ID             string `json:"id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// CodeStub is the problem-supplied boilerplate framing user code for one
// language. UserSnippet is the method signature line the user code fills.
type CodeStub struct {
	Language     string `json:"language"`
	StartSnippet string `json:"startSnippet"`
	UserSnippet  string `json:"userSnippet"`
	EndSnippet   string `json:"endSnippet"`
}

// Problem is the read-only catalog entry fetched per submission.
type Problem struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	TestCases []TestCase `json:"testcases"`
	CodeStubs []CodeStub `json:"codeStubs"`
}

// StubFor returns the code stub matching the given language.
func (p *Problem) StubFor(lang Language) (CodeStub, bool) {
	for _, s := range p.CodeStubs {
		if strings.EqualFold(s.Language, string(lang)) {
			return s, true
		}
	}
	return CodeStub{}, false
}

// PerTestResult is the outcome of running one test case.
//
// Invariant: Passed iff Error is empty and Output equals the trimmed
// expected output.
type PerTestResult struct {
	TestCase TestCase `json:"testCase"`
	Output   string   `json:"output"`
	Passed   bool     `json:"passed"`
	Error    string   `json:"error,omitempty"`
}

// Submission is the persisted record of one grading attempt.
type Submission struct {
	ID        string `json:"id" gorm:"primaryKey;size:64"`
	UserID    string `json:"userId" gorm:"index;size:64;not null"`
	ProblemID string `json:"problemId" gorm:"index;size:64;not null"`

	// Code archives the user code concatenated with the language stubs.
	Code     string   `json:"code" gorm:"type:text"`
	Language Language `json:"language" gorm:"size:16;not null"`
	Status   Status   `json:"status" gorm:"size:16;not null;default:'Pending'"`

	Results     []PerTestResult `json:"results" gorm:"serializer:json"`
	PassedCount int             `json:"passedCount"`
	TotalCount  int             `json:"totalCount"`
	Percent     int             `json:"percent"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Recount recomputes the aggregate counters from Results. TotalCount is
// left alone when it was pinned at enqueue time and exceeds the number of
// appended results.
func (s *Submission) Recount() {
	passed := 0
	for _, r := range s.Results {
		if r.Passed {
			passed++
		}
	}
	s.PassedCount = passed
	if len(s.Results) > s.TotalCount {
		s.TotalCount = len(s.Results)
	}
	s.Percent = Percent(passed, s.TotalCount)
}

// Percent computes round(100*passed/total), 0 when total is 0.
func Percent(passed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(passed)/float64(total)*100 + 0.5)
}

// Job is the queue payload. It carries a snapshot of the problem and its
// test cases so that grading is pinned against later catalog mutations.
type Job struct {
	SubmissionID string     `json:"submissionId"`
	UserID       string     `json:"userId"`
	ProblemID    string     `json:"problemId"`
	Language     Language   `json:"language"`
	UserCode     string     `json:"userCode"`
	Problem      Problem    `json:"problem"`
	TestCases    []TestCase `json:"testcases"`
}

// Progress is the completed/total pair of a progress event.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// ProgressEvent is one server-pushed update for a submission. Results is
// cumulative and append-only across the events of one submission.
type ProgressEvent struct {
	SubmissionID string          `json:"submissionId"`
	Status       Status          `json:"status"`
	Progress     Progress        `json:"progress"`
	Percent      int             `json:"percent"`
	PassedCount  int             `json:"passedCount"`
	TotalCount   int             `json:"totalCount"`
	Results      []PerTestResult `json:"results"`
	Error        string          `json:"error,omitempty"`
}
