package models

import (
	"time"

	"gorm.io/gorm"
)

// Assembly is a participant roster context an import can be launched from.
type Assembly struct {
	ID        int            `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	TenantID  int            `json:"tenant_id" gorm:"column:tenant_id;index;not null"`
	Name      string         `json:"name" gorm:"column:name;type:varchar(255);not null"`
	StartsAt  *time.Time     `json:"starts_at,omitempty" gorm:"column:starts_at"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"column:deleted_at;index"`
}

func (Assembly) TableName() string { return "assemblies" }

// Election is a voter roster context an import can be launched from.
type Election struct {
	ID        int            `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	TenantID  int            `json:"tenant_id" gorm:"column:tenant_id;index;not null"`
	Name      string         `json:"name" gorm:"column:name;type:varchar(255);not null"`
	OpensAt   *time.Time     `json:"opens_at,omitempty" gorm:"column:opens_at"`
	ClosesAt  *time.Time     `json:"closes_at,omitempty" gorm:"column:closes_at"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"column:deleted_at;index"`
}

func (Election) TableName() string { return "elections" }

// AssemblyParticipant links a person to an assembly roster.
type AssemblyParticipant struct {
	ID         int       `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	AssemblyID int       `json:"assembly_id" gorm:"column:assembly_id;uniqueIndex:idx_assembly_person;not null"`
	PersonID   int       `json:"person_id" gorm:"column:person_id;uniqueIndex:idx_assembly_person;not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (AssemblyParticipant) TableName() string { return "assembly_participants" }

// ElectionVoter links a person to an election roster.
type ElectionVoter struct {
	ID         int       `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	ElectionID int       `json:"election_id" gorm:"column:election_id;uniqueIndex:idx_election_person;not null"`
	PersonID   int       `json:"person_id" gorm:"column:person_id;uniqueIndex:idx_election_person;not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ElectionVoter) TableName() string { return "election_voters" }
