package models

import (
	"time"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User mirrors an identity issued by the hosted auth provider. Rows are created
// the first time a provider subject is seen.
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	AuthID    string    `gorm:"uniqueIndex;size:64;not null" json:"-"` // provider "sub"
	Email     string    `gorm:"index" json:"-"`
	Username  string    `gorm:"size:64;not null" json:"username"`
	Avatar    string    `gorm:"default:🌱" json:"avatar"` // emoji avatar
	Role      string    `gorm:"size:20;default:'member';not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
