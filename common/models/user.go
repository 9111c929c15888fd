package models

import (
	"time"
)

type Role string

const (
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleManager || r == RoleMember
}

type User struct {
	ID           string    `dynamodbav:"id" json:"id"`
	Email        string    `dynamodbav:"email" json:"email"`
	PasswordHash string    `dynamodbav:"passwordHash" json:"-"`
	Name         string    `dynamodbav:"name" json:"name"`
	Role         Role      `dynamodbav:"role" json:"role"`
	ManagerID    string    `dynamodbav:"managerId,omitempty" json:"managerId,omitempty"`
	TeamID       string    `dynamodbav:"teamId,omitempty" json:"teamId,omitempty"`
	CreatedAt    time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

// CreateUserInput carries a plain-text password that is hashed before storage.
type CreateUserInput struct {
	Email     string
	Password  string
	Name      string
	Role      Role
	ManagerID string
	TeamID    string
}

// SafeUser is a User without credentials.
type SafeUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	ManagerID string    `json:"managerId,omitempty"`
	TeamID    string    `json:"teamId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserSummary is the display projection used to enrich check-in details.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Safe() SafeUser {
	return SafeUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		ManagerID: u.ManagerID,
		TeamID:    u.TeamID,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

const (
	UnknownUserName  = "Unknown User"
	UnknownUserEmail = "unknown@example.com"
)
