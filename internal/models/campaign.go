package models

import "time"

type CampaignStatus string

const (
	StatusIdle      CampaignStatus = "idle"
	StatusRunning   CampaignStatus = "running"
	StatusCompleted CampaignStatus = "completed"
	StatusCancelled CampaignStatus = "cancelled"
	StatusError     CampaignStatus = "error"
)

// Terminal reports whether no further transition is allowed until a new campaign starts.
func (s CampaignStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusError
}

const DefaultRecipientName = "Hiring Manager"

type Recipient struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Company string `json:"company"`
}

// CampaignRequest is the input of one run. It is passed by value and never mutated.
type CampaignRequest struct {
	CampaignID string `json:"campaign_id"`

	Recipients     []Recipient `json:"recipients,omitempty"`
	RecipientsFile string      `json:"csv_file"`

	Subject string `json:"subject"`
	Body    string `json:"body"`

	UseAI      bool   `json:"use_ai"`
	JobRole    string `json:"job_role,omitempty"`
	Highlights string `json:"highlights,omitempty"`
	ResumeText string `json:"resume_text,omitempty"`

	AttachmentPath string `json:"resume_file,omitempty"`

	MaxEmails   int `json:"max_emails"`
	RatePerHour int `json:"rate_per_hour,omitempty"`
}

type ProgressState struct {
	Status     CampaignStatus `json:"status"`
	CampaignID string         `json:"campaign_id,omitempty"`

	Total   int `json:"total"`
	Current int `json:"current"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`

	Logs      []string `json:"logs"`
	Cancelled bool     `json:"cancelled"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
