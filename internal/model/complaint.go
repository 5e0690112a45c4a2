package model

import "time"

type ComplaintStatus string

const (
	ComplaintPending    ComplaintStatus = "pending"
	ComplaintInProgress ComplaintStatus = "in_progress"
	ComplaintResolved   ComplaintStatus = "resolved"
	ComplaintClosed     ComplaintStatus = "closed"
)

func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintPending, ComplaintInProgress, ComplaintResolved, ComplaintClosed:
		return true
	}
	return false
}

// Complaint is a customer-filed issue, optionally tied to a request.
type Complaint struct {
	ID         int64           `json:"id" bson:"_id"`
	RequestID  *int64          `json:"request_id,omitempty" bson:"request_id"`
	Name       string          `json:"name" bson:"name"`
	Email      string          `json:"email" bson:"email"`
	Phone      string          `json:"phone" bson:"phone"`
	Subject    string          `json:"subject" bson:"subject"`
	Message    string          `json:"message" bson:"message"`
	Status     ComplaintStatus `json:"status" bson:"status"`
	AdminNotes string          `json:"admin_notes,omitempty" bson:"admin_notes"`
	CreatedAt  time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" bson:"updated_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty" bson:"resolved_at"`
}
