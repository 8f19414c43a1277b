package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RequestStatus represents the lifecycle status of a help request
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusAccepted   RequestStatus = "accepted"
	StatusInProgress RequestStatus = "in-progress"
	StatusCompleted  RequestStatus = "completed"
	StatusCancelled  RequestStatus = "cancelled"
)

// IsTerminal returns true if the status is terminal (no further transitions allowed)
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// UrgencyLevel is the student-chosen priority hint
type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyHigh   UrgencyLevel = "high"
)

// PriorityForUrgency maps an urgency level to its numeric sort priority.
// Recomputed at the service layer whenever urgency is set.
func PriorityForUrgency(u UrgencyLevel) int {
	switch u {
	case UrgencyHigh:
		return 3
	case UrgencyLow:
		return 1
	default:
		return 2
	}
}

// IsValidUrgency reports whether u is a known urgency level
func IsValidUrgency(u UrgencyLevel) bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

// Subjects is the fixed subject set for help requests and mentor specialties
var Subjects = []string{
	"math",
	"physics",
	"chemistry",
	"biology",
	"english",
	"history",
	"geography",
	"computer-science",
	"economics",
	"other",
}

// IsValidSubject reports whether s belongs to the fixed subject set
func IsValidSubject(s string) bool {
	for _, subject := range Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// SessionDurations is the fixed set of allowed session lengths in minutes
var SessionDurations = []int{15, 30, 45, 60}

// DefaultSessionDuration is used when the student doesn't pick a duration
const DefaultSessionDuration = 30

// IsValidSessionDuration reports whether d belongs to the fixed duration set
func IsValidSessionDuration(d int) bool {
	for _, duration := range SessionDurations {
		if d == duration {
			return true
		}
	}
	return false
}

// Question text length bounds (after trimming)
const (
	MinQuestionLength = 10
	MaxQuestionLength = 2000
)

// Feedback text length bounds
const (
	MaxFeedbackLength     = 500
	MaxMentorNotesLength  = 1000
	MaxSessionNotesLength = 2000
)

// Attachment is a stored file attached to a help request
type Attachment struct {
	ID           uuid.UUID `json:"id"`
	StoredName   string    `json:"storedName"`
	OriginalName string    `json:"originalName"`
	URL          string    `json:"url"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
}

// HelpRequest is a student's tutoring help request tracked through its
// lifecycle to completion or cancellation
type HelpRequest struct {
	ID               uuid.UUID     `json:"id"`
	StudentID        uuid.UUID     `json:"studentId"`
	StudentName      string        `json:"studentName,omitempty"`
	MentorID         *uuid.UUID    `json:"mentorId"`
	MentorName       *string       `json:"mentorName,omitempty"`
	Subject          string        `json:"subject"`
	QuestionText     string        `json:"questionText"`
	Attachments      []Attachment  `json:"attachments"`
	SessionDuration  int           `json:"sessionDuration"`
	UrgencyLevel     UrgencyLevel  `json:"urgencyLevel"`
	Priority         int           `json:"priority"`
	Status           RequestStatus `json:"status"`
	ScheduledAt      *time.Time    `json:"scheduledAt"`
	SessionStartTime *time.Time    `json:"sessionStartTime"`
	SessionEndTime   *time.Time    `json:"sessionEndTime"`
	Rating           *int          `json:"rating"`
	Feedback         *string       `json:"feedback"`
	MentorNotes      *string       `json:"mentorNotes"`
	SessionNotes     *string       `json:"sessionNotes"`
	Tags             []string      `json:"tags"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// CanBeAccepted reports whether a mentor may still claim this request
func (r *HelpRequest) CanBeAccepted() bool {
	return r.Status == StatusPending && r.MentorID == nil
}

// IsParticipant reports whether userID is the owning student or the
// assigned mentor
func (r *HelpRequest) IsParticipant(userID uuid.UUID) bool {
	if r.StudentID == userID {
		return true
	}
	return r.MentorID != nil && *r.MentorID == userID
}

// StampSessionEnd sets the session end time if it has not been stamped yet
func (r *HelpRequest) StampSessionEnd(now time.Time) {
	if r.SessionEndTime == nil {
		r.SessionEndTime = &now
	}
}

// NormalizeQuestionText trims surrounding whitespace from the question
func NormalizeQuestionText(text string) string {
	return strings.TrimSpace(text)
}

// SubmitHelpRequest is the payload for creating a help request. Attachments
// arrive as multipart files alongside these form fields.
type SubmitHelpRequest struct {
	Subject         string       `form:"subject" binding:"required"`
	QuestionText    string       `form:"questionText" binding:"required"`
	SessionDuration int          `form:"sessionDuration"`
	UrgencyLevel    UrgencyLevel `form:"urgencyLevel" binding:"omitempty,oneof=low medium high"`
	Tags            []string     `form:"tags" binding:"omitempty,dive,max=50"`
}

// UpdateStatusRequest is the payload for progressing or cancelling a request
type UpdateStatusRequest struct {
	Status RequestStatus `json:"status" binding:"required,oneof=in-progress completed cancelled"`
}

// SubmitFeedbackRequest is the payload for rating and notes. The student owns
// rating and feedback; the mentor owns mentorNotes and sessionNotes.
type SubmitFeedbackRequest struct {
	Rating       *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Feedback     *string `json:"feedback" binding:"omitempty,max=500"`
	MentorNotes  *string `json:"mentorNotes" binding:"omitempty,max=1000"`
	SessionNotes *string `json:"sessionNotes" binding:"omitempty,max=2000"`
}

// AvailableFilter holds the optional AND-combined filters for the mentor
// candidate list
type AvailableFilter struct {
	Subject         string
	UrgencyLevel    UrgencyLevel
	SessionDuration int
}

// Pagination is the standard pagination block returned by list endpoints
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// PageCount computes ceil(total/limit)
func PageCount(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// HelpRequestList is the response shape for paginated request listings
type HelpRequestList struct {
	Requests   []HelpRequest `json:"requests"`
	Pagination Pagination    `json:"pagination"`
}

// ScanHelpRequest scans a single PostgreSQL row into a HelpRequest struct.
// Expected columns: id, student_id, student_name, mentor_id, mentor_name,
// subject, question_text, session_duration, urgency_level, priority, status,
// scheduled_at, session_start_time, session_end_time, rating, feedback,
// mentor_notes, session_notes, tags, created_at, updated_at
func ScanHelpRequest(row pgx.Row) (*HelpRequest, error) {
	var r HelpRequest
	var tags []string

	err := row.Scan(
		&r.ID,
		&r.StudentID,
		&r.StudentName,
		&r.MentorID,
		&r.MentorName,
		&r.Subject,
		&r.QuestionText,
		&r.SessionDuration,
		&r.UrgencyLevel,
		&r.Priority,
		&r.Status,
		&r.ScheduledAt,
		&r.SessionStartTime,
		&r.SessionEndTime,
		&r.Rating,
		&r.Feedback,
		&r.MentorNotes,
		&r.SessionNotes,
		&tags,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tags == nil {
		tags = []string{}
	}
	r.Tags = tags
	r.Attachments = []Attachment{}

	return &r, nil
}

// ScanHelpRequests scans multiple PostgreSQL rows into a slice of HelpRequest structs
func ScanHelpRequests(rows pgx.Rows) ([]*HelpRequest, error) {
	defer rows.Close()

	requests := []*HelpRequest{}
	for rows.Next() {
		request, err := ScanHelpRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return requests, nil
}
