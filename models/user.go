package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleOperator = 1
	RoleAdmin    = 3
)

// User is a platform operator account (the humans who run imports and resolve
// conflicts), distinct from the Person records the import engine manages.
type User struct {
	UserID   int    `gorm:"primaryKey;column:user_id" json:"user_id"`
	TenantID int    `gorm:"column:tenant_id;index;not null" json:"tenant_id"`
	Name     string `gorm:"column:name" json:"name"`
	Email    string `gorm:"column:email;unique" json:"email"`
	Password string `gorm:"column:password" json:"-"`
	RoleID   int    `gorm:"column:role_id" json:"role_id"`

	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (User) TableName() string { return "users" }
