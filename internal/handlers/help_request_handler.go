package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/tutorlink/tutorlink-api/internal/middleware"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/internal/services"
	"github.com/tutorlink/tutorlink-api/pkg/storage"
	"github.com/gin-gonic/gin"
)

// Pagination bounds for list endpoints
const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// HelpRequestHandler handles the help request lifecycle endpoints
type HelpRequestHandler struct {
	service services.HelpRequestServiceInterface
}

// NewHelpRequestHandler creates a new HelpRequestHandler
func NewHelpRequestHandler(service services.HelpRequestServiceInterface) *HelpRequestHandler {
	return &HelpRequestHandler{
		service: service,
	}
}

// Submit handles POST /api/v1/help-requests
// Creates a help request from a multipart form with optional file attachments
func (h *HelpRequestHandler) Submit(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	var payload models.SubmitHelpRequest
	if bindErr := c.ShouldBind(&payload); bindErr != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request body",
			ParseValidationErrors(bindErr), bindErr)
		return
	}

	attachments, err := h.collectAttachments(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	request, err := h.service.Submit(c.Request.Context(), session, &payload, attachments)
	if err != nil {
		h.respondServiceError(c, err, "Failed to submit help request")
		return
	}

	respondSuccess(c, http.StatusCreated, request, "Help request submitted")
}

// collectAttachments validates and reads the multipart attachment files.
// Validation happens here, before any upload starts.
func (h *HelpRequestHandler) collectAttachments(c *gin.Context) ([]services.AttachmentUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// Plain form posts without files are fine
		return nil, nil //nolint:nilerr
	}

	files := form.File["attachments"]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > storage.MaxAttachmentsPerRequest {
		return nil, fmt.Errorf("too many attachments: maximum is %d", storage.MaxAttachmentsPerRequest)
	}

	uploads := make([]services.AttachmentUpload, 0, len(files))
	for _, file := range files {
		if err := storage.ValidateSize(file.Size); err != nil {
			return nil, fmt.Errorf("attachment %q: %w", file.Filename, err)
		}

		mime := file.Header.Get("Content-Type")
		if err := storage.ValidateMimeType(mime); err != nil {
			return nil, fmt.Errorf("attachment %q: %w", file.Filename, err)
		}

		src, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("attachment %q: failed to read file", file.Filename)
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return nil, fmt.Errorf("attachment %q: failed to read file", file.Filename)
		}

		uploads = append(uploads, services.AttachmentUpload{
			File: file,
			Data: data,
			Mime: mime,
		})
	}

	return uploads, nil
}

// GetByID handles GET /api/v1/help-requests/:id
func (h *HelpRequestHandler) GetByID(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request ID", err)
		return
	}

	request, err := h.service.GetByID(c.Request.Context(), session, id)
	if err != nil {
		h.respondServiceError(c, err, "Failed to fetch help request")
		return
	}

	respondSuccess(c, http.StatusOK, request, "")
}

// ListMine handles GET /api/v1/help-requests/my-requests
// Returns the student's own requests, optionally filtered by status
func (h *HelpRequestHandler) ListMine(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	status, ok := parseStatusFilter(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	list, err := h.service.ListMine(c.Request.Context(), session, status, page, limit)
	if err != nil {
		h.respondServiceError(c, err, "Failed to list help requests")
		return
	}

	respondSuccess(c, http.StatusOK, list, "")
}

// ListAvailable handles GET /api/v1/help-requests/available
// Returns unclaimed pending requests for mentors, highest priority first
func (h *HelpRequestHandler) ListAvailable(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	filter := models.AvailableFilter{}

	if subject := c.Query("subject"); subject != "" {
		if !models.IsValidSubject(subject) {
			respondError(c, http.StatusBadRequest, "Unknown subject", nil)
			return
		}
		filter.Subject = subject
	}

	if urgency := c.Query("urgencyLevel"); urgency != "" {
		level := models.UrgencyLevel(urgency)
		if !models.IsValidUrgency(level) {
			respondError(c, http.StatusBadRequest, "Unknown urgency level", nil)
			return
		}
		filter.UrgencyLevel = level
	}

	if durationStr := c.Query("sessionDuration"); durationStr != "" {
		duration, err := strconv.Atoi(durationStr)
		if err != nil || !models.IsValidSessionDuration(duration) {
			respondError(c, http.StatusBadRequest, "Unsupported session duration", err)
			return
		}
		filter.SessionDuration = duration
	}

	page, limit := parsePagination(c)

	list, err := h.service.ListAvailable(c.Request.Context(), session, filter, page, limit)
	if err != nil {
		h.respondServiceError(c, err, "Failed to list available requests")
		return
	}

	respondSuccess(c, http.StatusOK, list, "")
}

// ListHistory handles GET /api/v1/help-requests/history
// Returns completed and cancelled requests the caller took part in
func (h *HelpRequestHandler) ListHistory(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	status, ok := parseStatusFilter(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	list, err := h.service.ListHistory(c.Request.Context(), session, status, page, limit)
	if err != nil {
		h.respondServiceError(c, err, "Failed to list request history")
		return
	}

	respondSuccess(c, http.StatusOK, list, "")
}

// Accept handles POST /api/v1/help-requests/:id/accept
// Claims a pending request for the calling mentor
func (h *HelpRequestHandler) Accept(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request ID", err)
		return
	}

	request, err := h.service.Accept(c.Request.Context(), session, id)
	if err != nil {
		h.respondServiceError(c, err, "Failed to accept help request")
		return
	}

	respondSuccess(c, http.StatusOK, request, "Help request accepted")
}

// UpdateStatus handles PATCH /api/v1/help-requests/:id/status
func (h *HelpRequestHandler) UpdateStatus(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request ID", err)
		return
	}

	var payload models.UpdateStatusRequest
	if bindErr := c.ShouldBindJSON(&payload); bindErr != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request body",
			ParseValidationErrors(bindErr), bindErr)
		return
	}

	request, err := h.service.UpdateStatus(c.Request.Context(), session, id, payload.Status)
	if err != nil {
		h.respondServiceError(c, err, "Failed to update status")
		return
	}

	respondSuccess(c, http.StatusOK, request, "Status updated")
}

// SubmitFeedback handles POST /api/v1/help-requests/:id/feedback
func (h *HelpRequestHandler) SubmitFeedback(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request ID", err)
		return
	}

	var payload models.SubmitFeedbackRequest
	if bindErr := c.ShouldBindJSON(&payload); bindErr != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request body",
			ParseValidationErrors(bindErr), bindErr)
		return
	}

	request, err := h.service.SubmitFeedback(c.Request.Context(), session, id, &payload)
	if err != nil {
		h.respondServiceError(c, err, "Failed to submit feedback")
		return
	}

	respondSuccess(c, http.StatusOK, request, "Feedback submitted")
}

// respondServiceError maps service sentinel errors onto HTTP statuses
func (h *HelpRequestHandler) respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrRequestNotFound):
		respondError(c, http.StatusNotFound, "Help request not found", err)
	case errors.Is(err, services.ErrAccessDenied):
		respondError(c, http.StatusForbidden, "Access denied", err)
	case errors.Is(err, services.ErrMentorsOnly):
		respondError(c, http.StatusForbidden, "Operation restricted to mentors", err)
	case errors.Is(err, services.ErrOwnRequest):
		respondError(c, http.StatusForbidden, "Cannot accept your own request", err)
	case errors.Is(err, services.ErrRequestAlreadyTaken):
		respondError(c, http.StatusBadRequest, "Request cannot be accepted", err)
	case errors.Is(err, services.ErrRequestTerminal):
		respondError(c, http.StatusBadRequest, "Request is already completed or cancelled", err)
	case errors.Is(err, services.ErrInvalidStatusTransition):
		respondError(c, http.StatusBadRequest, "Invalid status transition", err)
	case errors.Is(err, services.ErrInvalidSubject),
		errors.Is(err, services.ErrInvalidQuestionText),
		errors.Is(err, services.ErrInvalidSessionDuration),
		errors.Is(err, services.ErrInvalidUrgency),
		errors.Is(err, services.ErrInvalidHistoryStatus),
		errors.Is(err, services.ErrFeedbackEmpty):
		respondError(c, http.StatusBadRequest, err.Error(), err)
	default:
		respondError(c, http.StatusInternalServerError, fallback, err)
	}
}

// parseStatusFilter reads the optional status query parameter. It writes the
// error response itself and returns ok=false when the value is unknown.
func parseStatusFilter(c *gin.Context) (*models.RequestStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}

	status := models.RequestStatus(raw)
	switch status {
	case models.StatusPending, models.StatusAccepted, models.StatusInProgress,
		models.StatusCompleted, models.StatusCancelled:
		return &status, true
	}

	respondError(c, http.StatusBadRequest, "Unknown status value", nil)
	return nil, false
}

// parsePagination reads page and limit query parameters with sane bounds
func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	return page, limit
}
