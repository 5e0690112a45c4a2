package alerts

import "time"

const (
	TaskSendEmail = "email:send"

	QueueEmails = "emails"
)

// EmailEnvelope is the asynq payload for TaskSendEmail.
type EmailEnvelope struct {
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	Enqueued time.Time `json:"enqueued"`
}
