package models

import "time"

// Territory is a top-level geographic catalog entry. CSV files reference
// territories by name; the mapper resolves names to ids before classification.
type Territory struct {
	ID        int       `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	Name      string    `json:"name" gorm:"column:name;type:varchar(255);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Territory) TableName() string { return "territories" }

// Municipality belongs to a territory and is likewise referenced by name in
// import files.
type Municipality struct {
	ID          int       `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	TerritoryID int       `json:"territory_id" gorm:"column:territory_id;index;not null"`
	Name        string    `json:"name" gorm:"column:name;type:varchar(255);index;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	Territory Territory `json:"territory,omitempty" gorm:"foreignKey:TerritoryID"`
}

func (Municipality) TableName() string { return "municipalities" }
