package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/altnbk/saas-landing-page/internal/dto"
	"github.com/altnbk/saas-landing-page/internal/service"
	"github.com/altnbk/saas-landing-page/pkg/constants"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
	"github.com/altnbk/saas-landing-page/pkg/responses"
)

const testID = "0b6f2a52-5c1e-4d3b-9a57-6f0f8f1f6a11"

type mockService struct {
	mock.Mock
}

func (m *mockService) Create(ctx context.Context, caller service.Caller, req *dto.CreateDeploymentRequest) (*dto.DeploymentResponse, error) {
	args := m.Called(caller, req)
	resp, _ := args.Get(0).(*dto.DeploymentResponse)
	return resp, args.Error(1)
}

func (m *mockService) Get(ctx context.Context, caller service.Caller, id string) (*dto.DeploymentDetailResponse, error) {
	args := m.Called(caller, id)
	resp, _ := args.Get(0).(*dto.DeploymentDetailResponse)
	return resp, args.Error(1)
}

func (m *mockService) List(ctx context.Context, caller service.Caller, query *dto.ListDeploymentsQuery) (*dto.PageResponse, error) {
	args := m.Called(caller, query)
	resp, _ := args.Get(0).(*dto.PageResponse)
	return resp, args.Error(1)
}

func (m *mockService) Run(ctx context.Context, caller service.Caller, id string) (*dto.DeploymentResultResponse, error) {
	args := m.Called(caller, id)
	resp, _ := args.Get(0).(*dto.DeploymentResultResponse)
	return resp, args.Error(1)
}

func (m *mockService) CheckStatus(ctx context.Context, caller service.Caller, id string) (*dto.DeploymentResultResponse, error) {
	args := m.Called(caller, id)
	resp, _ := args.Get(0).(*dto.DeploymentResultResponse)
	return resp, args.Error(1)
}

func (m *mockService) Cleanup(ctx context.Context, caller service.Caller, id string) error {
	return m.Called(caller, id).Error(0)
}

var alice = service.Caller{UID: "alice", Roles: []string{constants.RoleUser}}

func newTestRouter(svc service.DeploymentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(constants.ContextKeyOwner, "alice")
		c.Set(constants.ContextKeyRole, constants.RoleUser)
	})

	h := NewDeploymentHandler(svc)
	r.POST("/deployments", h.Create)
	r.GET("/deployments", h.List)
	r.GET("/deployments/:id", h.Get)
	r.POST("/deployments/:id/run", h.Run)
	r.GET("/deployments/:id/status", h.Status)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) responses.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp responses.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateDeployment(t *testing.T) {
	svc := new(mockService)
	req := &dto.CreateDeploymentRequest{OrganizationName: "Acme", SignerName: "Jane", SignerEmail: "jane@acme.test"}
	svc.On("Create", alice, req).Return(&dto.DeploymentResponse{ID: testID, Status: constants.DeploymentStatusQueued}, nil)

	resp := do(t, newTestRouter(svc), http.MethodPost, "/deployments", req)

	assert.Equal(t, pkgErrors.CodeSuccess, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, testID, data["id"])
	assert.Equal(t, constants.DeploymentStatusQueued, data["status"])
}

func TestCreateDeploymentRejectsBadBody(t *testing.T) {
	svc := new(mockService)

	resp := do(t, newTestRouter(svc), http.MethodPost, "/deployments", map[string]string{
		"organization_name": "Acme",
		"signer_name":       "Jane",
		"signer_email":      "not-an-email",
	})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Detail, "SignerEmail")
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetRejectsMalformedID(t *testing.T) {
	svc := new(mockService)

	resp := do(t, newTestRouter(svc), http.MethodGet, "/deployments/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	svc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestGetNotFound(t *testing.T) {
	svc := new(mockService)
	svc.On("Get", alice, testID).Return(nil, pkgErrors.ErrRecordNotFound)

	resp := do(t, newTestRouter(svc), http.MethodGet, "/deployments/"+testID, nil)

	assert.Equal(t, pkgErrors.CodeNotFound, resp.Code)
}

func TestRunReturnsFailedResult(t *testing.T) {
	svc := new(mockService)
	msg := "Cloudflare error: quota exceeded"
	svc.On("Run", alice, testID).Return(&dto.DeploymentResultResponse{
		DeploymentID: testID,
		Status:       constants.DeploymentStatusFailed,
		ErrorMessage: &msg,
	}, errors.New("create_project: quota exceeded"))

	resp := do(t, newTestRouter(svc), http.MethodPost, "/deployments/"+testID+"/run", nil)

	assert.Equal(t, pkgErrors.CodeSuccess, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, constants.DeploymentStatusFailed, data["status"])
	assert.Equal(t, msg, data["error_message"])
}

func TestRunInProgress(t *testing.T) {
	svc := new(mockService)
	svc.On("Run", alice, testID).Return(&dto.DeploymentResultResponse{
		DeploymentID: testID,
		Status:       constants.DeploymentStatusDeploying,
		InProgress:   true,
	}, nil)

	resp := do(t, newTestRouter(svc), http.MethodPost, "/deployments/"+testID+"/run", nil)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["in_progress"])
}

func TestStatusError(t *testing.T) {
	svc := new(mockService)
	svc.On("CheckStatus", alice, testID).Return(nil, pkgErrors.ErrForbidden)

	resp := do(t, newTestRouter(svc), http.MethodGet, "/deployments/"+testID+"/status", nil)

	assert.Equal(t, pkgErrors.CodeForbidden, resp.Code)
}

func TestListBindsQuery(t *testing.T) {
	svc := new(mockService)
	svc.On("List", alice, mock.MatchedBy(func(q *dto.ListDeploymentsQuery) bool {
		return q.GetPage() == 2 && q.GetPageSize() == 5 && q.Status == constants.DeploymentStatusLive
	})).Return(dto.NewPageResponse([]*dto.DeploymentResponse{}, 0, 2, 5), nil)

	resp := do(t, newTestRouter(svc), http.MethodGet, "/deployments?page=2&page_size=5&status=live", nil)
	assert.Equal(t, pkgErrors.CodeSuccess, resp.Code)

	resp = do(t, newTestRouter(svc), http.MethodGet, "/deployments?status=unknown", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	svc.AssertNumberOfCalls(t, "List", 1)
}
