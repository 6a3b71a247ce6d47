package services

import (
	"time"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
)

const unknownDisplayValue = "Unknown"

// ApplicantView is the display data of the user behind an application.
type ApplicantView struct {
	ID       int    `json:"id"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type ApplicationView struct {
	ID             int                        `json:"id"`
	EventID        int                        `json:"eventId"`
	EventTitle     string                     `json:"eventTitle"`
	UserID         int                        `json:"userId"`
	Status         models.ParticipationStatus `json:"status"`
	TicketQuantity int                        `json:"ticketQuantity"`
	TotalAmount    models.Amount              `json:"totalAmount"`
	CreatedAt      time.Time                  `json:"createdAt"`
	UpdatedAt      time.Time                  `json:"updatedAt"`
	ReviewedAt     *time.Time                 `json:"reviewedAt,omitempty"`
	Applicant      ApplicantView              `json:"applicant"`
}

type PendingApplications struct {
	EventID      int               `json:"eventId"`
	EventTitle   string            `json:"eventTitle"`
	Applications []ApplicationView `json:"applications"`
	TotalPending int               `json:"totalPending"`
}

type HostApplications struct {
	Pending        []ApplicationView `json:"pending"`
	Completed      []ApplicationView `json:"completed"`
	TotalPending   int               `json:"totalPending"`
	TotalCompleted int               `json:"totalCompleted"`
}

type ReviewResult struct {
	Message     string               `json:"message"`
	Application models.Participation `json:"application"`
	Applicant   ApplicantView        `json:"applicant"`
}

// newApplicantView fills missing display fields with placeholders.
func newApplicantView(userID int, u *models.User) ApplicantView {
	v := ApplicantView{ID: userID, FullName: unknownDisplayValue, Username: unknownDisplayValue}
	if u == nil {
		return v
	}
	if u.FullName != "" {
		v.FullName = u.FullName
	}
	if u.Username != "" {
		v.Username = u.Username
	}
	v.Email = u.Email
	return v
}

func newApplicationView(app models.Application) ApplicationView {
	p := app.Participation
	return ApplicationView{
		ID:             p.ID,
		EventID:        p.EventID,
		EventTitle:     app.EventTitle,
		UserID:         p.UserID,
		Status:         p.Status,
		TicketQuantity: p.Quantity(),
		TotalAmount:    p.TotalAmount,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		ReviewedAt:     p.ReviewedAt,
		Applicant:      newApplicantView(p.UserID, app.Applicant),
	}
}

func newApplicationViews(apps []models.Application) []ApplicationView {
	views := make([]ApplicationView, 0, len(apps))
	for _, app := range apps {
		views = append(views, newApplicationView(app))
	}
	return views
}
