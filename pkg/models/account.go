package models

import "time"

// AccountCredential identifies one venue account whose private collections
// are synchronized. Loaded once per orchestration run and read-only after.
type AccountCredential struct {
	ID        int       `json:"id" db:"id"`
	APIKey    string    `json:"api_key" db:"api_key"`
	APISecret string    `json:"-" db:"api_secret"`
	Email     string    `json:"email" db:"email"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Valid reports whether the credential can be used for signed venue calls.
func (a AccountCredential) Valid() bool {
	return a.APIKey != "" && a.APISecret != ""
}
