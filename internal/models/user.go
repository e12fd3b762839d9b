package models

import (
	"errors"
	"time"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUser(username, password, email string) *User {
	return &User{Username: username, Password: password, Email: email}
}

func ValidateUser(user *User) error {
	if user.Username == "" || user.Password == "" {
		return errors.New("username and password are required")
	}
	return nil
}
