package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationTypeNewRequest is sent to matching mentors when a student
// submits a new help request
const NotificationTypeNewRequest = "new_help_request"

// NotificationTypeSessionFinished is sent when a request reaches completed
const NotificationTypeSessionFinished = "session_finished"

// OpenRequestSummary is a compact view of an open request included in
// mentor notifications (the capped quick list)
type OpenRequestSummary struct {
	ID           uuid.UUID    `json:"id"`
	Subject      string       `json:"subject"`
	UrgencyLevel UrgencyLevel `json:"urgencyLevel"`
	Priority     int          `json:"priority"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// SessionFinishedEvent is the descriptor posted to the session-finished
// trigger when a request completes, explicitly or via implicit completion
type SessionFinishedEvent struct {
	Type            string     `json:"type"`
	RequestID       uuid.UUID  `json:"requestId"`
	StudentID       uuid.UUID  `json:"studentId"`
	MentorID        *uuid.UUID `json:"mentorId,omitempty"`
	Subject         string     `json:"subject"`
	SessionDuration int        `json:"sessionDuration"`
	SessionEndTime  *time.Time `json:"sessionEndTime,omitempty"`
	FinishedAt      time.Time  `json:"finishedAt"`
}

// Notification is the descriptor handed to the notification dispatcher.
// Delivery is best-effort and asynchronous.
type Notification struct {
	Type            string               `json:"type"`
	MentorID        uuid.UUID            `json:"mentorId"`
	MentorEmail     string               `json:"mentorEmail"`
	RequestID       uuid.UUID            `json:"requestId"`
	Subject         string               `json:"subject"`
	UrgencyLevel    UrgencyLevel         `json:"urgencyLevel"`
	SessionDuration int                  `json:"sessionDuration"`
	OpenRequests    []OpenRequestSummary `json:"openRequests"`
	CreatedAt       time.Time            `json:"createdAt"`
}
