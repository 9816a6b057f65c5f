package models

import "time"

const (
	ConflictReasonAmbiguousIdentity = "ambiguous_identity"
	ConflictReasonModeMismatch      = "mode_mismatch"
)

const (
	ResolutionSkipped      = "skipped"
	ResolutionUpdated      = "updated"
	ResolutionMerged       = "merged"
	ResolutionForceCreated = "force_created"
)

// ImportConflict is a row whose target identity was ambiguous or whose match
// contradicted the import mode. Each conflict is its own row so that operator
// resolutions are guarded single-row updates; two operators resolving different
// conflicts of the same job never contend on shared state.
type ImportConflict struct {
	ID          string `json:"id" gorm:"primaryKey;column:id;type:varchar(36)"`
	ImportJobID uint   `json:"import_job_id" gorm:"column:import_job_id;index;not null"`
	RowNumber   int64  `json:"row_number" gorm:"column:row_number;not null"`

	// RawRow keeps the CSV values keyed by source column; ResolvedRow keeps the
	// mapped attribute values with lookups (territory, municipality) already
	// replaced by ids. Resolution strategies need both representations.
	RawRow      JSONMap `json:"raw_row" gorm:"column:raw_row;type:json"`
	ResolvedRow JSONMap `json:"resolved_row" gorm:"column:resolved_row;type:json"`

	// The colliding person id(s), keyed by which identity field produced them.
	// Email and document lookups can legitimately point at different people.
	EmailMatchID    *int `json:"email_match_id,omitempty" gorm:"column:email_match_id"`
	DocumentMatchID *int `json:"document_match_id,omitempty" gorm:"column:document_match_id"`

	Reason string `json:"reason" gorm:"column:reason;type:varchar(32);not null"`

	Resolved   bool       `json:"resolved" gorm:"column:resolved;not null;default:0"`
	Resolution *string    `json:"resolution,omitempty" gorm:"column:resolution;type:enum('skipped','updated','merged','force_created')"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" gorm:"column:resolved_at"`
	ResolvedBy *int       `json:"resolved_by,omitempty" gorm:"column:resolved_by"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (ImportConflict) TableName() string { return "import_conflicts" }

// SingleMatchID returns the person id the update/merge strategies target: the
// email match when present, otherwise the document match.
func (c *ImportConflict) SingleMatchID() *int {
	if c.EmailMatchID != nil {
		return c.EmailMatchID
	}
	return c.DocumentMatchID
}

// ValidResolution reports whether s names one of the four strategies.
func ValidResolution(s string) bool {
	switch s {
	case ResolutionSkipped, ResolutionUpdated, ResolutionMerged, ResolutionForceCreated:
		return true
	}
	return false
}
