package models

// User is read-only from the lifecycle manager's point of view.
type User struct {
	ID       int    `json:"id"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
