package services_test

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/tutorlink/tutorlink-api/internal/models"
)

// MockHelpRequestStore is a mock implementation of repository.HelpRequestStore
type MockHelpRequestStore struct {
	mock.Mock
}

func (m *MockHelpRequestStore) Create(ctx context.Context, req *models.HelpRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockHelpRequestStore) AddAttachment(ctx context.Context, requestID uuid.UUID, attachment *models.Attachment) error {
	args := m.Called(ctx, requestID, attachment)
	return args.Error(0)
}

func (m *MockHelpRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.HelpRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HelpRequest), args.Error(1)
}

func (m *MockHelpRequestStore) ListByStudent(ctx context.Context, studentID uuid.UUID, status *models.RequestStatus, limit, offset int) ([]*models.HelpRequest, error) {
	args := m.Called(ctx, studentID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HelpRequest), args.Error(1)
}

func (m *MockHelpRequestStore) CountByStudent(ctx context.Context, studentID uuid.UUID, status *models.RequestStatus) (int, error) {
	args := m.Called(ctx, studentID, status)
	return args.Int(0), args.Error(1)
}

func (m *MockHelpRequestStore) ListAvailable(ctx context.Context, filter models.AvailableFilter, limit, offset int) ([]*models.HelpRequest, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HelpRequest), args.Error(1)
}

func (m *MockHelpRequestStore) CountAvailable(ctx context.Context, filter models.AvailableFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *MockHelpRequestStore) ListHistory(ctx context.Context, userID uuid.UUID, role models.UserRole, status *models.RequestStatus, limit, offset int) ([]*models.HelpRequest, error) {
	args := m.Called(ctx, userID, role, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HelpRequest), args.Error(1)
}

func (m *MockHelpRequestStore) CountHistory(ctx context.Context, userID uuid.UUID, role models.UserRole, status *models.RequestStatus) (int, error) {
	args := m.Called(ctx, userID, role, status)
	return args.Int(0), args.Error(1)
}

func (m *MockHelpRequestStore) Accept(ctx context.Context, id, mentorID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, mentorID)
	return args.Bool(0), args.Error(1)
}

func (m *MockHelpRequestStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus, startSession, stampEnd bool) error {
	args := m.Called(ctx, id, status, startSession, stampEnd)
	return args.Error(0)
}

func (m *MockHelpRequestStore) UpdateStudentFeedback(ctx context.Context, id uuid.UUID, rating *int, feedback *string) error {
	args := m.Called(ctx, id, rating, feedback)
	return args.Error(0)
}

func (m *MockHelpRequestStore) UpdateMentorFeedback(ctx context.Context, id uuid.UUID, mentorNotes, sessionNotes *string) error {
	args := m.Called(ctx, id, mentorNotes, sessionNotes)
	return args.Error(0)
}

func (m *MockHelpRequestStore) CompletedRatings(ctx context.Context, mentorID uuid.UUID) ([]int, error) {
	args := m.Called(ctx, mentorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

// MockUserStore is a mock implementation of repository.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) FindActiveMentorsBySubject(ctx context.Context, subject string) ([]*models.User, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserStore) UpdateMentorRating(ctx context.Context, mentorID uuid.UUID, rating float64, totalSessions int) error {
	args := m.Called(ctx, mentorID, rating, totalSessions)
	return args.Error(0)
}

// MockHTTPClient is a mock implementation of httpclient.Client
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Post(url, contentType string, body io.Reader) (*http.Response, error) {
	args := m.Called(url, contentType, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func (m *MockHTTPClient) Get(url string) (*http.Response, error) {
	args := m.Called(url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}
