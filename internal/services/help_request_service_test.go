package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/internal/services"
)

func studentSession() *models.UserSession {
	return &models.UserSession{
		UserID: uuid.New(),
		Email:  "student@example.com",
		Name:   "Test Student",
		Role:   models.RoleStudent,
	}
}

func mentorSession() *models.UserSession {
	return &models.UserSession{
		UserID: uuid.New(),
		Email:  "mentor@example.com",
		Name:   "Test Mentor",
		Role:   models.RoleMentor,
	}
}

func newService(requestRepo *MockHelpRequestStore, userRepo *MockUserStore) *services.HelpRequestService {
	ratings := services.NewRatingService(requestRepo, userRepo)
	return services.NewHelpRequestService(requestRepo, userRepo, nil, nil, ratings)
}

func TestHelpRequestService_Submit(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	session := studentSession()
	ctx := context.Background()

	payload := &models.SubmitHelpRequest{
		Subject:      "math",
		QuestionText: "  How do I solve quadratic equations by completing the square?  ",
	}

	requestRepo.On("Create", ctx, mock.MatchedBy(func(r *models.HelpRequest) bool {
		return r.StudentID == session.UserID &&
			r.Subject == "math" &&
			r.Status == models.StatusPending &&
			r.UrgencyLevel == models.UrgencyMedium &&
			r.Priority == 2 &&
			r.SessionDuration == models.DefaultSessionDuration &&
			r.QuestionText == "How do I solve quadratic equations by completing the square?"
	})).Return(nil).Once()

	request, err := service.Submit(ctx, session, payload, nil)
	assert.NoError(t, err)
	assert.NotNil(t, request)
	assert.Equal(t, models.StatusPending, request.Status)
	assert.Empty(t, request.Attachments)

	requestRepo.AssertExpectations(t)
}

func TestHelpRequestService_Submit_HighUrgency(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	payload := &models.SubmitHelpRequest{
		Subject:         "physics",
		QuestionText:    "Why does the moon not fall down onto the earth?",
		UrgencyLevel:    models.UrgencyHigh,
		SessionDuration: 60,
	}

	requestRepo.On("Create", ctx, mock.MatchedBy(func(r *models.HelpRequest) bool {
		return r.Priority == 3 && r.SessionDuration == 60
	})).Return(nil).Once()

	request, err := service.Submit(ctx, studentSession(), payload, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.UrgencyHigh, request.UrgencyLevel)

	requestRepo.AssertExpectations(t)
}

func TestHelpRequestService_Submit_MultibyteQuestionLength(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	// 1200 characters but 2400 bytes: length limits count characters
	question := strings.Repeat("ф", 1200)
	payload := &models.SubmitHelpRequest{
		Subject:      "math",
		QuestionText: question,
	}

	requestRepo.On("Create", ctx, mock.MatchedBy(func(r *models.HelpRequest) bool {
		return r.QuestionText == question
	})).Return(nil).Once()

	_, err := service.Submit(ctx, studentSession(), payload, nil)
	assert.NoError(t, err)

	requestRepo.AssertExpectations(t)
}

func TestHelpRequestService_Submit_ValidationErrors(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	session := studentSession()
	ctx := context.Background()

	tests := []struct {
		name    string
		payload *models.SubmitHelpRequest
		wantErr error
	}{
		{
			name: "question too short",
			payload: &models.SubmitHelpRequest{
				Subject:      "math",
				QuestionText: "help",
			},
			wantErr: services.ErrInvalidQuestionText,
		},
		{
			name: "question too long",
			payload: &models.SubmitHelpRequest{
				Subject:      "math",
				QuestionText: strings.Repeat("x", models.MaxQuestionLength+1),
			},
			wantErr: services.ErrInvalidQuestionText,
		},
		{
			name: "multibyte question under ten characters",
			payload: &models.SubmitHelpRequest{
				Subject:      "math",
				QuestionText: strings.Repeat("ф", models.MinQuestionLength-1),
			},
			wantErr: services.ErrInvalidQuestionText,
		},
		{
			name: "whitespace only question",
			payload: &models.SubmitHelpRequest{
				Subject:      "math",
				QuestionText: "                    ",
			},
			wantErr: services.ErrInvalidQuestionText,
		},
		{
			name: "unknown subject",
			payload: &models.SubmitHelpRequest{
				Subject:      "underwater-basket-weaving",
				QuestionText: "A perfectly reasonable question about the subject",
			},
			wantErr: services.ErrInvalidSubject,
		},
		{
			name: "unsupported duration",
			payload: &models.SubmitHelpRequest{
				Subject:         "math",
				QuestionText:    "A perfectly reasonable question about the subject",
				SessionDuration: 25,
			},
			wantErr: services.ErrInvalidSessionDuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Submit(ctx, session, tt.payload, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	requestRepo.AssertNotCalled(t, "Create")
}

func TestHelpRequestService_GetByID_AccessControl(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	owner := studentSession()
	stranger := studentSession()
	admin := &models.UserSession{UserID: uuid.New(), Role: models.RoleAdmin}

	request := &models.HelpRequest{
		ID:        uuid.New(),
		StudentID: owner.UserID,
		Status:    models.StatusPending,
	}

	requestRepo.On("GetByID", ctx, request.ID).Return(request, nil)

	got, err := service.GetByID(ctx, owner, request.ID)
	assert.NoError(t, err)
	assert.Equal(t, request.ID, got.ID)

	_, err = service.GetByID(ctx, stranger, request.ID)
	assert.ErrorIs(t, err, services.ErrAccessDenied)

	_, err = service.GetByID(ctx, admin, request.ID)
	assert.NoError(t, err)
}

func TestHelpRequestService_Accept(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	mentor := mentorSession()
	requestID := uuid.New()

	accepted := &models.HelpRequest{
		ID:        requestID,
		StudentID: uuid.New(),
		MentorID:  &mentor.UserID,
		Status:    models.StatusAccepted,
	}

	requestRepo.On("Accept", ctx, requestID, mentor.UserID).Return(true, nil).Once()
	requestRepo.On("GetByID", ctx, requestID).Return(accepted, nil).Once()

	request, err := service.Accept(ctx, mentor, requestID)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, request.Status)
	assert.Equal(t, mentor.UserID, *request.MentorID)

	requestRepo.AssertExpectations(t)
}

func TestHelpRequestService_Accept_StudentForbidden(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)

	_, err := service.Accept(context.Background(), studentSession(), uuid.New())
	assert.ErrorIs(t, err, services.ErrMentorsOnly)

	requestRepo.AssertNotCalled(t, "Accept")
}

func TestHelpRequestService_Accept_LostRace(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	mentor := mentorSession()
	otherMentor := uuid.New()
	requestID := uuid.New()

	taken := &models.HelpRequest{
		ID:        requestID,
		StudentID: uuid.New(),
		MentorID:  &otherMentor,
		Status:    models.StatusAccepted,
	}

	requestRepo.On("Accept", ctx, requestID, mentor.UserID).Return(false, nil).Once()
	requestRepo.On("GetByID", ctx, requestID).Return(taken, nil).Once()

	_, err := service.Accept(ctx, mentor, requestID)
	assert.ErrorIs(t, err, services.ErrRequestAlreadyTaken)

	requestRepo.AssertExpectations(t)
}

func TestHelpRequestService_Accept_OwnRequest(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	// A mentor browsing the pool must not claim their own submission.
	mentor := mentorSession()
	requestID := uuid.New()

	own := &models.HelpRequest{
		ID:        requestID,
		StudentID: mentor.UserID,
		Status:    models.StatusPending,
	}

	requestRepo.On("Accept", ctx, requestID, mentor.UserID).Return(false, nil).Once()
	requestRepo.On("GetByID", ctx, requestID).Return(own, nil).Once()

	_, err := service.Accept(ctx, mentor, requestID)
	assert.ErrorIs(t, err, services.ErrOwnRequest)

	requestRepo.AssertExpectations(t)
}

func TestHelpRequestService_Accept_NotFound(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	mentor := mentorSession()
	requestID := uuid.New()

	requestRepo.On("Accept", ctx, requestID, mentor.UserID).Return(false, nil).Once()
	requestRepo.On("GetByID", ctx, requestID).Return(nil, assert.AnError).Once()

	_, err := service.Accept(ctx, mentor, requestID)
	assert.ErrorIs(t, err, services.ErrRequestNotFound)
}

func TestHelpRequestService_UpdateStatus_Progression(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	mentor := mentorSession()
	requestID := uuid.New()

	accepted := &models.HelpRequest{
		ID:        requestID,
		StudentID: uuid.New(),
		MentorID:  &mentor.UserID,
		Status:    models.StatusAccepted,
	}
	inProgress := &models.HelpRequest{
		ID:        requestID,
		StudentID: accepted.StudentID,
		MentorID:  &mentor.UserID,
		Status:    models.StatusInProgress,
	}

	requestRepo.On("GetByID", ctx, requestID).Return(accepted, nil).Once()
	requestRepo.On("UpdateStatus", ctx, requestID, models.StatusInProgress, true, false).Return(nil).Once()
	requestRepo.On("GetByID", ctx, requestID).Return(inProgress, nil).Once()

	request, err := service.UpdateStatus(ctx, mentor, requestID, models.StatusInProgress)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, request.Status)

	requestRepo.AssertExpectations(t)
}

func TestHelpRequestService_UpdateStatus_CompletionStampsEnd(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	mentor := mentorSession()
	requestID := uuid.New()

	inProgress := &models.HelpRequest{
		ID:        requestID,
		StudentID: uuid.New(),
		MentorID:  &mentor.UserID,
		Status:    models.StatusInProgress,
	}
	completed := &models.HelpRequest{
		ID:        requestID,
		StudentID: inProgress.StudentID,
		MentorID:  &mentor.UserID,
		Status:    models.StatusCompleted,
	}

	requestRepo.On("GetByID", ctx, requestID).Return(inProgress, nil).Once()
	requestRepo.On("UpdateStatus", ctx, requestID, models.StatusCompleted, false, true).Return(nil).Once()
	requestRepo.On("GetByID", ctx, requestID).Return(completed, nil).Once()

	request, err := service.UpdateStatus(ctx, mentor, requestID, models.StatusCompleted)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, request.Status)
}

func TestHelpRequestService_UpdateStatus_CompleteStraightFromAccepted(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	mentor := mentorSession()
	requestID := uuid.New()

	accepted := &models.HelpRequest{
		ID:        requestID,
		StudentID: uuid.New(),
		MentorID:  &mentor.UserID,
		Status:    models.StatusAccepted,
	}
	completed := &models.HelpRequest{
		ID:        requestID,
		StudentID: accepted.StudentID,
		MentorID:  &mentor.UserID,
		Status:    models.StatusCompleted,
	}

	requestRepo.On("GetByID", ctx, requestID).Return(accepted, nil).Once()
	requestRepo.On("UpdateStatus", ctx, requestID, models.StatusCompleted, false, true).Return(nil).Once()
	requestRepo.On("GetByID", ctx, requestID).Return(completed, nil).Once()

	request, err := service.UpdateStatus(ctx, mentor, requestID, models.StatusCompleted)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, request.Status)
}

func TestHelpRequestService_UpdateStatus_AdminNotParticipant(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	// Admins can read any request but only the assigned student or
	// mentor may progress or cancel it.
	admin := &models.UserSession{UserID: uuid.New(), Role: models.RoleAdmin}
	mentorID := uuid.New()
	requestID := uuid.New()

	accepted := &models.HelpRequest{
		ID:        requestID,
		StudentID: uuid.New(),
		MentorID:  &mentorID,
		Status:    models.StatusAccepted,
	}

	requestRepo.On("GetByID", ctx, requestID).Return(accepted, nil)

	_, err := service.UpdateStatus(ctx, admin, requestID, models.StatusCancelled)
	assert.ErrorIs(t, err, services.ErrAccessDenied)

	_, err = service.UpdateStatus(ctx, admin, requestID, models.StatusInProgress)
	assert.ErrorIs(t, err, services.ErrAccessDenied)

	requestRepo.AssertNotCalled(t, "UpdateStatus")
}

func TestHelpRequestService_UpdateStatus_TerminalFrozen(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	student := studentSession()
	requestID := uuid.New()

	cancelled := &models.HelpRequest{
		ID:        requestID,
		StudentID: student.UserID,
		Status:    models.StatusCancelled,
	}

	requestRepo.On("GetByID", ctx, requestID).Return(cancelled, nil)

	_, err := service.UpdateStatus(ctx, student, requestID, models.StatusInProgress)
	assert.ErrorIs(t, err, services.ErrRequestTerminal)

	// Cancelling twice is also a conflict, not a no-op
	_, err = service.UpdateStatus(ctx, student, requestID, models.StatusCancelled)
	assert.ErrorIs(t, err, services.ErrRequestTerminal)

	requestRepo.AssertNotCalled(t, "UpdateStatus")
}

func TestHelpRequestService_UpdateStatus_InvalidTransition(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	student := studentSession()
	requestID := uuid.New()

	pending := &models.HelpRequest{
		ID:        requestID,
		StudentID: student.UserID,
		Status:    models.StatusPending,
	}

	requestRepo.On("GetByID", ctx, requestID).Return(pending, nil)

	// pending requests only progress through the accept handshake
	_, err := service.UpdateStatus(ctx, student, requestID, models.StatusInProgress)
	assert.ErrorIs(t, err, services.ErrInvalidStatusTransition)

	_, err = service.UpdateStatus(ctx, student, requestID, models.StatusCompleted)
	assert.ErrorIs(t, err, services.ErrInvalidStatusTransition)

	requestRepo.AssertNotCalled(t, "UpdateStatus")
}

func TestHelpRequestService_UpdateStatus_CancelFromAnyLiveState(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	student := studentSession()
	requestID := uuid.New()

	pending := &models.HelpRequest{
		ID:        requestID,
		StudentID: student.UserID,
		Status:    models.StatusPending,
	}
	cancelled := &models.HelpRequest{
		ID:        requestID,
		StudentID: student.UserID,
		Status:    models.StatusCancelled,
	}

	requestRepo.On("GetByID", ctx, requestID).Return(pending, nil).Once()
	requestRepo.On("UpdateStatus", ctx, requestID, models.StatusCancelled, false, false).Return(nil).Once()
	requestRepo.On("GetByID", ctx, requestID).Return(cancelled, nil).Once()

	request, err := service.UpdateStatus(ctx, student, requestID, models.StatusCancelled)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, request.Status)
}

func TestHelpRequestService_SubmitFeedback_StudentRating(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	student := studentSession()
	mentorID := uuid.New()
	requestID := uuid.New()

	rating := 5
	feedback := "Very clear explanations"

	completed := &models.HelpRequest{
		ID:        requestID,
		StudentID: student.UserID,
		MentorID:  &mentorID,
		Status:    models.StatusCompleted,
		Rating:    &rating,
		Feedback:  &feedback,
	}

	requestRepo.On("GetByID", ctx, requestID).Return(completed, nil)
	requestRepo.On("UpdateStudentFeedback", ctx, requestID, &rating, &feedback).Return(nil).Once()
	requestRepo.On("CompletedRatings", ctx, mentorID).Return([]int{5, 4}, nil).Once()
	userRepo.On("UpdateMentorRating", ctx, mentorID, 4.5, 2).Return(nil).Once()

	payload := &models.SubmitFeedbackRequest{Rating: &rating, Feedback: &feedback}
	request, err := service.SubmitFeedback(ctx, student, requestID, payload)
	assert.NoError(t, err)
	assert.Equal(t, 5, *request.Rating)

	requestRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestHelpRequestService_SubmitFeedback_ImplicitCompletion(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	mentorID := uuid.New()
	mentor := &models.UserSession{UserID: mentorID, Role: models.RoleMentor}
	requestID := uuid.New()

	rating := 4
	notes := "Covered derivatives and the chain rule"

	inProgress := &models.HelpRequest{
		ID:        requestID,
		StudentID: uuid.New(),
		MentorID:  &mentorID,
		Status:    models.StatusInProgress,
		Rating:    &rating,
	}
	withNotes := &models.HelpRequest{
		ID:          requestID,
		StudentID:   inProgress.StudentID,
		MentorID:    &mentorID,
		Status:      models.StatusInProgress,
		Rating:      &rating,
		MentorNotes: &notes,
	}
	completed := &models.HelpRequest{
		ID:          requestID,
		StudentID:   inProgress.StudentID,
		MentorID:    &mentorID,
		Status:      models.StatusCompleted,
		Rating:      &rating,
		MentorNotes: &notes,
	}

	requestRepo.On("GetByID", ctx, requestID).Return(inProgress, nil).Once()
	requestRepo.On("UpdateMentorFeedback", ctx, requestID, &notes, (*string)(nil)).Return(nil).Once()
	requestRepo.On("GetByID", ctx, requestID).Return(withNotes, nil).Once()
	requestRepo.On("UpdateStatus", ctx, requestID, models.StatusCompleted, false, true).Return(nil).Once()
	requestRepo.On("GetByID", ctx, requestID).Return(completed, nil).Once()

	payload := &models.SubmitFeedbackRequest{MentorNotes: &notes}
	request, err := service.SubmitFeedback(ctx, mentor, requestID, payload)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, request.Status)

	// Mentor feedback never recomputes the rating aggregate
	requestRepo.AssertNotCalled(t, "CompletedRatings")
	requestRepo.AssertExpectations(t)
}

func TestHelpRequestService_SubmitFeedback_EmptyForRole(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	student := studentSession()
	requestID := uuid.New()
	notes := "notes from the wrong side"

	request := &models.HelpRequest{
		ID:        requestID,
		StudentID: student.UserID,
		Status:    models.StatusCompleted,
	}

	requestRepo.On("GetByID", ctx, requestID).Return(request, nil)

	// A student posting only mentor fields has nothing to save
	payload := &models.SubmitFeedbackRequest{MentorNotes: &notes}
	_, err := service.SubmitFeedback(ctx, student, requestID, payload)
	assert.ErrorIs(t, err, services.ErrFeedbackEmpty)

	requestRepo.AssertNotCalled(t, "UpdateStudentFeedback")
	requestRepo.AssertNotCalled(t, "UpdateMentorFeedback")
}

func TestHelpRequestService_ListAvailable_MentorsOnly(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)

	_, err := service.ListAvailable(context.Background(), studentSession(), models.AvailableFilter{}, 1, 20)
	assert.ErrorIs(t, err, services.ErrMentorsOnly)
}

func TestHelpRequestService_ListHistory_RejectsLiveStatusFilter(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)

	pending := models.StatusPending
	_, err := service.ListHistory(context.Background(), studentSession(), &pending, 1, 20)
	assert.ErrorIs(t, err, services.ErrInvalidHistoryStatus)
}

func TestHelpRequestService_ListMine_Pagination(t *testing.T) {
	requestRepo := new(MockHelpRequestStore)
	userRepo := new(MockUserStore)
	service := newService(requestRepo, userRepo)
	ctx := context.Background()

	student := studentSession()

	requests := []*models.HelpRequest{
		{ID: uuid.New(), StudentID: student.UserID, Status: models.StatusPending},
		{ID: uuid.New(), StudentID: student.UserID, Status: models.StatusPending},
	}

	requestRepo.On("ListByStudent", ctx, student.UserID, (*models.RequestStatus)(nil), 20, 20).Return(requests, nil).Once()
	requestRepo.On("CountByStudent", ctx, student.UserID, (*models.RequestStatus)(nil)).Return(45, nil).Once()

	list, err := service.ListMine(ctx, student, nil, 2, 20)
	assert.NoError(t, err)
	assert.Len(t, list.Requests, 2)
	assert.Equal(t, 45, list.Pagination.Total)
	assert.Equal(t, 2, list.Pagination.Page)
	assert.Equal(t, 3, list.Pagination.Pages)

	requestRepo.AssertExpectations(t)
}
