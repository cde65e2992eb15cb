package domain

import "time"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCustomer  Role = "customer"
	RoleExecutive Role = "executive"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCustomer, RoleExecutive:
		return true
	}
	return false
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	PasswordHash []byte    `json:"-"`
}

type Session struct {
	Token    string    `json:"token"`
	User     User      `json:"user"`
	IssuedAt time.Time `json:"issuedAt"`
}
