package models

import (
	"time"

	"gorm.io/gorm"
)

// Person is a participant/voter record. The import engine only touches this
// table through the PersonRepository contract in services.
type Person struct {
	ID       int `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	TenantID int `json:"tenant_id" gorm:"column:tenant_id;uniqueIndex:idx_people_tenant_email;uniqueIndex:idx_people_tenant_document;not null"`

	Name           string  `json:"name" gorm:"column:name;type:varchar(255)"`
	Email          string  `json:"email" gorm:"column:email;type:varchar(255);uniqueIndex:idx_people_tenant_email"`
	DocumentType   *string `json:"document_type,omitempty" gorm:"column:document_type;type:varchar(16)"`
	DocumentNumber string  `json:"document_number" gorm:"column:document_number;type:varchar(32);uniqueIndex:idx_people_tenant_document"`
	Phone          *string `json:"phone,omitempty" gorm:"column:phone;type:varchar(32)"`

	TerritoryID    *int `json:"territory_id,omitempty" gorm:"column:territory_id"`
	MunicipalityID *int `json:"municipality_id,omitempty" gorm:"column:municipality_id"`

	// Never written by import updates or merges.
	Password string `json:"-" gorm:"column:password;type:varchar(255)"`

	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"column:deleted_at;index"`

	Territory    *Territory    `json:"territory,omitempty" gorm:"foreignKey:TerritoryID"`
	Municipality *Municipality `json:"municipality,omitempty" gorm:"foreignKey:MunicipalityID"`
}

func (Person) TableName() string { return "people" }
