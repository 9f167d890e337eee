package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleTracker  Role = "tracker"
	RoleDesigner Role = "designer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleTracker, RoleDesigner:
		return true
	}
	return false
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	}
	return false
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID               int64      `bun:"id,pk,autoincrement" json:"id"`
	Username         string     `bun:"username,unique,notnull" json:"username"`
	Email            string     `bun:"email,unique,notnull" json:"email"`
	Role             Role       `bun:"role,notnull" json:"role"`
	Phone            string     `bun:"phone,nullzero" json:"phone,omitempty"`
	Gender           string     `bun:"gender,nullzero" json:"gender,omitempty"`
	BirthDate        string     `bun:"birth_date,nullzero" json:"birth_date,omitempty"`
	HireDate         string     `bun:"hire_date,nullzero" json:"hire_date,omitempty"`
	Department       string     `bun:"department,nullzero" json:"department,omitempty"`
	Position         string     `bun:"position,nullzero" json:"position,omitempty"`
	EmergencyContact string     `bun:"emergency_contact,nullzero" json:"emergency_contact,omitempty"`
	EmergencyPhone   string     `bun:"emergency_phone,nullzero" json:"emergency_phone,omitempty"`
	Address          string     `bun:"address,nullzero" json:"address,omitempty"`
	Bio              string     `bun:"bio,nullzero" json:"bio,omitempty"`
	Status           UserStatus `bun:"status,notnull,default:'active'" json:"status"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	ShopPermissions []string `bun:"-" json:"shop_permissions"`
}

// UserShopPermission grants a non-admin user visibility of one shop.
type UserShopPermission struct {
	bun.BaseModel `bun:"table:user_shop_permissions,alias:usp"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    int64     `bun:"user_id,notnull,unique:user_shop" json:"user_id"`
	ShopName  string    `bun:"shop_name,notnull,unique:user_shop" json:"shop_name"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// UserInput is the writable part of a User.
type UserInput struct {
	Username         string     `json:"username" validate:"required,max=64"`
	Email            string     `json:"email" validate:"required,email,max=255"`
	Role             Role       `json:"role" validate:"required,oneof=admin operator tracker designer"`
	Phone            string     `json:"phone" validate:"max=32"`
	Gender           string     `json:"gender" validate:"omitempty,oneof=male female other"`
	BirthDate        string     `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	HireDate         string     `json:"hire_date" validate:"omitempty,datetime=2006-01-02"`
	Department       string     `json:"department" validate:"max=128"`
	Position         string     `json:"position" validate:"max=128"`
	EmergencyContact string     `json:"emergency_contact" validate:"max=64"`
	EmergencyPhone   string     `json:"emergency_phone" validate:"max=32"`
	Address          string     `json:"address"`
	Bio              string     `json:"bio"`
	Status           UserStatus `json:"status" validate:"required,oneof=active inactive suspended"`
	ShopPermissions  []string   `json:"shop_permissions" validate:"dive,max=128"`
}
