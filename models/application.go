package models

// Application is a participation joined to its event title and, when the user
// row still exists, its applicant.
type Application struct {
	Participation Participation
	EventTitle    string
	Applicant     *User
}
