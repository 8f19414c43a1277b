package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tutorlink/tutorlink-api/internal/middleware"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/internal/services"
	"github.com/tutorlink/tutorlink-api/pkg/logger"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)

	if err := logger.Initialize(logger.Config{
		Level:       "debug",
		Environment: "development",
	}); err != nil {
		panic(err)
	}
}

// MockHelpRequestService is a mock implementation of HelpRequestServiceInterface
type MockHelpRequestService struct {
	mock.Mock
}

func (m *MockHelpRequestService) Submit(ctx context.Context, session *models.UserSession, payload *models.SubmitHelpRequest, attachments []services.AttachmentUpload) (*models.HelpRequest, error) {
	args := m.Called(ctx, session, payload, attachments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HelpRequest), args.Error(1)
}

func (m *MockHelpRequestService) GetByID(ctx context.Context, session *models.UserSession, id uuid.UUID) (*models.HelpRequest, error) {
	args := m.Called(ctx, session, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HelpRequest), args.Error(1)
}

func (m *MockHelpRequestService) ListMine(ctx context.Context, session *models.UserSession, status *models.RequestStatus, page, limit int) (*models.HelpRequestList, error) {
	args := m.Called(ctx, session, status, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HelpRequestList), args.Error(1)
}

func (m *MockHelpRequestService) ListAvailable(ctx context.Context, session *models.UserSession, filter models.AvailableFilter, page, limit int) (*models.HelpRequestList, error) {
	args := m.Called(ctx, session, filter, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HelpRequestList), args.Error(1)
}

func (m *MockHelpRequestService) ListHistory(ctx context.Context, session *models.UserSession, status *models.RequestStatus, page, limit int) (*models.HelpRequestList, error) {
	args := m.Called(ctx, session, status, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HelpRequestList), args.Error(1)
}

func (m *MockHelpRequestService) Accept(ctx context.Context, session *models.UserSession, id uuid.UUID) (*models.HelpRequest, error) {
	args := m.Called(ctx, session, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HelpRequest), args.Error(1)
}

func (m *MockHelpRequestService) UpdateStatus(ctx context.Context, session *models.UserSession, id uuid.UUID, newStatus models.RequestStatus) (*models.HelpRequest, error) {
	args := m.Called(ctx, session, id, newStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HelpRequest), args.Error(1)
}

func (m *MockHelpRequestService) SubmitFeedback(ctx context.Context, session *models.UserSession, id uuid.UUID, payload *models.SubmitFeedbackRequest) (*models.HelpRequest, error) {
	args := m.Called(ctx, session, id, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HelpRequest), args.Error(1)
}

var _ services.HelpRequestServiceInterface = (*MockHelpRequestService)(nil)

// withSession injects a session the way SessionMiddleware would
func withSession(session *models.UserSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.SessionContextKey, session)
		c.Next()
	}
}

func testRouter(service services.HelpRequestServiceInterface, session *models.UserSession) *gin.Engine {
	handler := NewHelpRequestHandler(service)

	router := gin.New()
	group := router.Group("/api/v1/help-requests")
	if session != nil {
		group.Use(withSession(session))
	}
	group.GET("/available", handler.ListAvailable)
	group.GET("/:id", handler.GetByID)
	group.POST("/:id/accept", handler.Accept)
	group.PATCH("/:id/status", handler.UpdateStatus)

	return router
}

func TestHelpRequestHandler_GetByID(t *testing.T) {
	service := new(MockHelpRequestService)
	session := &models.UserSession{UserID: uuid.New(), Role: models.RoleStudent}
	router := testRouter(service, session)

	request := &models.HelpRequest{
		ID:        uuid.New(),
		StudentID: session.UserID,
		Subject:   "math",
		Status:    models.StatusPending,
	}

	service.On("GetByID", mock.Anything, session, request.ID).Return(request, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/help-requests/"+request.ID.String(), http.NoBody)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status int                `json:"status"`
		Data   models.HelpRequest `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusOK, body.Status)
	assert.Equal(t, request.ID, body.Data.ID)

	service.AssertExpectations(t)
}

func TestHelpRequestHandler_GetByID_NotFound(t *testing.T) {
	service := new(MockHelpRequestService)
	session := &models.UserSession{UserID: uuid.New(), Role: models.RoleStudent}
	router := testRouter(service, session)

	id := uuid.New()
	service.On("GetByID", mock.Anything, session, id).Return(nil, services.ErrRequestNotFound).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/help-requests/"+id.String(), http.NoBody)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]any
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
	assert.NotEmpty(t, body["message"])
	assert.NotContains(t, body, "data")
}

func TestHelpRequestHandler_GetByID_BadID(t *testing.T) {
	service := new(MockHelpRequestService)
	session := &models.UserSession{UserID: uuid.New(), Role: models.RoleStudent}
	router := testRouter(service, session)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/help-requests/not-a-uuid", http.NoBody)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "GetByID")
}

func TestHelpRequestHandler_MissingSession(t *testing.T) {
	service := new(MockHelpRequestService)
	router := testRouter(service, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/help-requests/"+uuid.NewString(), http.NoBody)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHelpRequestHandler_Accept_Conflict(t *testing.T) {
	service := new(MockHelpRequestService)
	session := &models.UserSession{UserID: uuid.New(), Role: models.RoleMentor}
	router := testRouter(service, session)

	id := uuid.New()
	service.On("Accept", mock.Anything, session, id).Return(nil, services.ErrRequestAlreadyTaken).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/help-requests/"+id.String()+"/accept", http.NoBody)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Request cannot be accepted", body["message"])
}

func TestHelpRequestHandler_UpdateStatus_InvalidBody(t *testing.T) {
	service := new(MockHelpRequestService)
	session := &models.UserSession{UserID: uuid.New(), Role: models.RoleMentor}
	router := testRouter(service, session)

	// "accepted" is only reachable via the accept handshake
	payload := bytes.NewBufferString(`{"status": "accepted"}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("PATCH", "/api/v1/help-requests/"+uuid.NewString()+"/status", payload)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "UpdateStatus")
}

func TestHelpRequestHandler_ListAvailable_FilterValidation(t *testing.T) {
	service := new(MockHelpRequestService)
	session := &models.UserSession{UserID: uuid.New(), Role: models.RoleMentor}
	router := testRouter(service, session)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/help-requests/available?subject=alchemy", http.NoBody)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "ListAvailable")
}

func TestHelpRequestHandler_ListAvailable_PassesFilter(t *testing.T) {
	service := new(MockHelpRequestService)
	session := &models.UserSession{UserID: uuid.New(), Role: models.RoleMentor}
	router := testRouter(service, session)

	expectedFilter := models.AvailableFilter{
		Subject:         "physics",
		UrgencyLevel:    models.UrgencyHigh,
		SessionDuration: 45,
	}
	list := &models.HelpRequestList{
		Requests:   []models.HelpRequest{},
		Pagination: models.Pagination{Total: 0, Page: 3, Limit: 10, Pages: 0},
	}

	service.On("ListAvailable", mock.Anything, session, expectedFilter, 3, 10).Return(list, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET",
		"/api/v1/help-requests/available?subject=physics&urgencyLevel=high&sessionDuration=45&page=3&limit=10",
		http.NoBody)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestHelpRequestHandler_PaginationBounds(t *testing.T) {
	service := new(MockHelpRequestService)
	session := &models.UserSession{UserID: uuid.New(), Role: models.RoleMentor}
	router := testRouter(service, session)

	list := &models.HelpRequestList{Requests: []models.HelpRequest{}}

	// Oversized limit is clamped, bad page falls back to 1
	service.On("ListAvailable", mock.Anything, session, models.AvailableFilter{}, 1, 100).Return(list, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/help-requests/available?page=-4&limit=5000", http.NoBody)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}
