// Package problems is the read-only HTTP client for the problem catalog
// service.
package problems

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"algojudge/pkg/models"
)

var ErrProblemNotFound = errors.New("problem not found")

// Client fetches problems from the catalog service.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// GetProblem fetches one problem by id. Both the wrapped response shape
// {"data": {...}} and the bare problem object are accepted.
func (c *Client) GetProblem(ctx context.Context, id string) (*models.Problem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+id, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("problem service request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProblemNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("problem service returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read problem response: %w", err)
	}

	var wrapped struct {
		Data *models.Problem `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data, nil
	}

	var problem models.Problem
	if err := json.Unmarshal(body, &problem); err != nil {
		return nil, fmt.Errorf("decode problem: %w", err)
	}
	if problem.ID == "" {
		problem.ID = id
	}
	return &problem, nil
}
