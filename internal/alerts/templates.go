package alerts

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/homeswift/internal/model"
)

// Email is a rendered message ready for a Notifier.
type Email struct {
	Subject string
	HTML    string
}

var statusMessages = map[model.Status]string{
	model.StatusPending:    "Your booking is pending confirmation. We will review it and get back to you shortly.",
	model.StatusAssigned:   "A service provider has been assigned to your booking.",
	model.StatusConfirmed:  "Your booking has been confirmed! A service provider will be assigned soon.",
	model.StatusInProgress: "Your service is now in progress. Our team is working on your request.",
	model.StatusCompleted:  "Your service has been completed successfully!",
	model.StatusCancelled:  "Your booking has been cancelled. If you have any questions, please contact us.",
}

var templates = template.Must(template.New("emails").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return "R" + d.StringFixed(2) },
	"upper": func(s model.Status) string { return strings.ToUpper(string(s)) },
}).Parse(`
{{define "footer"}}<p style="color:#6B7280;font-size:12px;">This is an automated email. Please do not reply to this message.</p>{{end}}

{{define "customerConfirmation"}}<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:20px;">
<h1 style="color:#2563EB;">HomeSwift</h1>
<h2>Booking Confirmation</h2>
<p>Dear {{.R.CustomerName}},</p>
<p>Thank you for booking with HomeSwift! Your service request has been received and is being processed.</p>
<p><strong>Request ID:</strong> #{{.R.RequestID}}</p>
<p><strong>Total Amount:</strong> {{money .R.TotalCustomerPaid}}</p>
<p><strong>Preferred Date:</strong> {{.R.PreferredDate}}</p>
<p><strong>Preferred Time:</strong> {{.R.PreferredTime}}</p>
<ul>{{range .R.ServiceItems}}<li>{{.Quantity}} x {{.Category}}: {{.ItemDescription}}{{if .White}} (white){{end}} {{money .CustomerPrice}}</li>{{end}}</ul>
<p>We'll review your request and confirm your booking within 2 hours. You'll receive another email once a service provider has been assigned.</p>
<p>Best regards,<br><strong>HomeSwift Team</strong></p>
{{template "footer"}}</div>{{end}}

{{define "adminAlert"}}<h2>New Service Request</h2>
<p>A new service request has been submitted:</p>
<p><strong>Request ID:</strong> #{{.R.RequestID}}</p>
<p><strong>Customer:</strong> {{.R.CustomerName}} ({{.R.CustomerEmail}})</p>
<p><strong>Total Amount:</strong> {{money .R.TotalCustomerPaid}}</p>
<p>Please review and assign a provider.</p>{{end}}

{{define "providerAssignment"}}<h2>New Service Assignment</h2>
<p>Dear {{.R.ProviderName}},</p>
<p>You have been assigned a new service request:</p>
<p><strong>Request ID:</strong> #{{.R.RequestID}}</p>
<p><strong>Customer:</strong> {{.R.CustomerName}}</p>
<p><strong>Phone:</strong> {{.R.CustomerPhone}}</p>
<p><strong>Address:</strong> {{.R.CustomerAddress}}</p>
<p><strong>Date:</strong> {{.R.PreferredDate}}</p>
<p><strong>Time:</strong> {{.R.PreferredTime}}</p>
<p><strong>Your payout:</strong> {{money .R.TotalProviderPayout}}</p>
{{if .R.SpecialInstructions}}<p><strong>Instructions:</strong> {{.R.SpecialInstructions}}</p>{{end}}
<p>Please contact the customer to confirm.</p>{{end}}

{{define "customerProviderDetails"}}<h2>Service Provider Assigned</h2>
<p>Dear {{.R.CustomerName}},</p>
<p>Your service provider has been assigned:</p>
<p><strong>Provider:</strong> {{.R.ProviderName}}</p>
<p><strong>Phone:</strong> {{.R.ProviderPhone}}</p>
<p><strong>Email:</strong> {{.R.ProviderEmail}}</p>
<p>They will contact you shortly to confirm details.</p>{{end}}

{{define "serviceCompletion"}}<h2>Service Completed</h2>
<p>Dear {{.R.CustomerName}},</p>
<p>Your service request #{{.R.RequestID}} has been marked as completed.</p>
<p>Thank you for choosing HomeSwift!</p>{{end}}

{{define "statusUpdate"}}<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:20px;">
<h2 style="color:#2563EB;">Booking Status Update</h2>
<p>Dear {{.R.CustomerName}},</p>
<p>{{.Message}}</p>
<p><strong>Request ID:</strong> #{{.R.RequestID}}</p>
<p><strong>Status:</strong> {{upper .R.Status}}</p>
{{if .R.PreferredDate}}<p><strong>Scheduled Date:</strong> {{.R.PreferredDate}}</p>{{end}}
{{if .R.PreferredTime}}<p><strong>Scheduled Time:</strong> {{.R.PreferredTime}}</p>{{end}}
{{if .R.ProviderName}}<h3>Your Service Provider</h3>
<p><strong>Name:</strong> {{.R.ProviderName}}</p>
{{if .R.ProviderPhone}}<p><strong>Phone:</strong> {{.R.ProviderPhone}}</p>{{end}}
{{if .R.ProviderEmail}}<p><strong>Email:</strong> {{.R.ProviderEmail}}</p>{{end}}{{end}}
<p>Best regards,<br><strong>HomeSwift Team</strong></p>
{{template "footer"}}</div>{{end}}

{{define "assignedElsewhere"}}<h2>Job No Longer Available</h2>
<p>Dear {{.Name}},</p>
<p>Thank you for your interest in request #{{.R.RequestID}}. This job has now been assigned to another provider.</p>
<p>Keep an eye on your dashboard for new jobs in your area.</p>{{end}}

{{define "passwordReset"}}<h2>Password reset instructions</h2>
<p>Hello {{.Name}},</p>
<p>We received a request to reset your HomeSwift password. To proceed, open the link below:</p>
<p><a href="{{.URL}}">{{.URL}}</a></p>
<p>This link expires in {{.Minutes}} minutes. If you did not request this, no action is required.</p>
{{template "footer"}}{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

type requestData struct {
	R       *model.ServiceRequest
	Message string
	Name    string
}

func requestEmail(name, subject string, data requestData) (Email, error) {
	html, err := render(name, data)
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: fmt.Sprintf("%s - Request #%d", subject, data.R.RequestID), HTML: html}, nil
}

func CustomerConfirmation(r *model.ServiceRequest) (Email, error) {
	return requestEmail("customerConfirmation", "Booking Confirmation", requestData{R: r})
}

func AdminAlert(r *model.ServiceRequest) (Email, error) {
	return requestEmail("adminAlert", "New Service Request", requestData{R: r})
}

func ProviderAssignment(r *model.ServiceRequest) (Email, error) {
	return requestEmail("providerAssignment", "New Service Assignment", requestData{R: r})
}

func CustomerProviderDetails(r *model.ServiceRequest) (Email, error) {
	return requestEmail("customerProviderDetails", "Service Provider Assigned", requestData{R: r})
}

func ServiceCompletion(r *model.ServiceRequest) (Email, error) {
	return requestEmail("serviceCompletion", "Service Completed", requestData{R: r})
}

// StatusUpdate describes r's current status; provider details are included
// when the request has been assigned.
func StatusUpdate(r *model.ServiceRequest) (Email, error) {
	msg, ok := statusMessages[r.Status]
	if !ok {
		msg = "Your booking status has been updated to: " + string(r.Status)
	}
	return requestEmail("statusUpdate", "Booking Status Update", requestData{R: r, Message: msg})
}

// AssignedElsewhere tells an interested provider that someone else got the job.
func AssignedElsewhere(r *model.ServiceRequest, providerName string) (Email, error) {
	return requestEmail("assignedElsewhere", "Job Assigned Elsewhere", requestData{R: r, Name: providerName})
}

func PasswordReset(name, resetURL string, expiry time.Duration) (Email, error) {
	html, err := render("passwordReset", struct {
		Name    string
		URL     string
		Minutes int
	}{name, resetURL, int(expiry.Minutes())})
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: "Password reset instructions", HTML: html}, nil
}
