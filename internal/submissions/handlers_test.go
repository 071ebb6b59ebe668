package submissions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"algojudge/internal/auth"
	"algojudge/internal/middleware"
	"algojudge/internal/ws"
	"algojudge/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service, *auth.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _, _ := newTestService(t)
	authSvc := auth.NewService("test-secret")

	router := gin.New()
	NewHandlers(svc, ws.NewHub()).Register(router, middleware.RequireAuth(authSvc))
	return router, svc, authSvc
}

func bearer(t *testing.T, authSvc *auth.Service, userID string) string {
	t.Helper()
	token, err := authSvc.Sign(userID, time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateEndpoint(t *testing.T) {
	router, _, authSvc := newTestRouter(t)
	token := bearer(t, authSvc, "user-1")

	rec := doJSON(router, http.MethodPost, "/api/submissions/create?problemId=p-1", token,
		createRequest{UserCode: "def validParentheses(s):\n    return True", Language: "python"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sub models.Submission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, models.StatusPending, sub.Status)
	assert.Equal(t, "user-1", sub.UserID)
}

func TestCreateEndpointRequiresAuth(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(router, http.MethodPost, "/api/submissions/create?problemId=p-1", "",
		createRequest{UserCode: "code", Language: "python"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateEndpointValidation(t *testing.T) {
	router, _, authSvc := newTestRouter(t)
	token := bearer(t, authSvc, "user-1")

	rec := doJSON(router, http.MethodPost, "/api/submissions/create", token,
		createRequest{UserCode: "code", Language: "python"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateEndpointProblemNotFound(t *testing.T) {
	router, _, authSvc := newTestRouter(t)
	token := bearer(t, authSvc, "user-1")

	rec := doJSON(router, http.MethodPost, "/api/submissions/create?problemId=ghost", token,
		createRequest{UserCode: "code", Language: "python"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Problem not found")
}

func TestGetEndpointOwnership(t *testing.T) {
	router, svc, authSvc := newTestRouter(t)

	sub, err := svc.Create(context.Background(), "user-1", "p-1", "code", "python")
	require.NoError(t, err)

	rec := doJSON(router, http.MethodGet, "/api/submissions/"+sub.ID, bearer(t, authSvc, "user-1"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodGet, "/api/submissions/"+sub.ID, bearer(t, authSvc, "user-2"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(router, http.MethodGet, "/api/submissions/missing", bearer(t, authSvc, "user-1"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEndpoint(t *testing.T) {
	router, svc, authSvc := newTestRouter(t)

	_, err := svc.Create(context.Background(), "user-1", "p-1", "code", "python")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "user-1", "p-1", "code", "cpp")
	require.NoError(t, err)

	rec := doJSON(router, http.MethodGet, "/api/submissions/user", bearer(t, authSvc, "user-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var subs []models.Submission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subs))
	assert.Len(t, subs, 2)

	rec = doJSON(router, http.MethodGet, "/api/submissions/user", bearer(t, authSvc, "user-2"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subs))
	assert.Empty(t, subs)
}

func TestInternalPushEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/internal/push", "", map[string]interface{}{
		"userId":       "user-1",
		"submissionId": "sub-1",
		"data":         models.ProgressEvent{SubmissionID: "sub-1", Status: models.StatusRunning},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodPost, "/internal/push", "", map[string]string{"userId": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
