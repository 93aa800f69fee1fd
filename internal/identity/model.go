package identity

import "time"

// User represents a registered account.
type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   []byte
	ProfilePicture string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Summary is the public view of a user returned to clients. It never carries
// the password hash.
type Summary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Summary returns the client facing view of the user.
func (u User) Summary() Summary {
	return Summary{ID: u.ID, Username: u.Username, Email: u.Email}
}
