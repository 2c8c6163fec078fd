package models

import "encoding/json"

type User struct {
	ID       ID     `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role,omitempty"`
	Language string `json:"language,omitempty"`

	// FeedbackGiven gates the post-submission redirect.
	FeedbackGiven bool `json:"feedback_given"`

	Profile json.RawMessage `json:"profile,omitempty"`
}

// AuthSession is what the backend returns from login and register.
type AuthSession struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
