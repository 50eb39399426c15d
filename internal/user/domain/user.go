package domain

import "time"

type ID string

type User struct {
	ID           ID
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
}
