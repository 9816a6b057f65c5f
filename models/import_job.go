package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

const (
	ImportJobStatusPending    = "pending"
	ImportJobStatusProcessing = "processing"
	ImportJobStatusCompleted  = "completed"
	ImportJobStatusFailed     = "failed"
)

const (
	ImportModeInsert = "insert"
	ImportModeUpdate = "update"
	ImportModeBoth   = "both"
)

// DefaultImportBatchSize bounds per-commit work when none is configured.
const DefaultImportBatchSize = 50

// FieldMapping maps one CSV column to one importable person attribute.
type FieldMapping struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// FieldMappings is the ordered mapping list persisted as a JSON column.
type FieldMappings []FieldMapping

func (m FieldMappings) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *FieldMappings) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	b, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(b, m)
}

// ImportRowError records one non-fatal row failure.
type ImportRowError struct {
	Row     int64  `json:"row"`
	Message string `json:"message"`
}

// ImportRowErrors is the job error list persisted as a JSON column.
type ImportRowErrors []ImportRowError

func (e ImportRowErrors) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (e *ImportRowErrors) Scan(value interface{}) error {
	if value == nil {
		*e = nil
		return nil
	}
	b, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*e = nil
		return nil
	}
	return json.Unmarshal(b, e)
}

// ImportJob is one execution of the bulk-import pipeline against one uploaded file.
// Conflicts live in their own table (ImportConflict) keyed by job id so that
// resolutions are single-row writes instead of whole-job rewrites.
type ImportJob struct {
	ID       uint `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID int  `json:"tenant_id" gorm:"column:tenant_id;index;not null"`

	// Originating context: at most one of these is set. Rows inserted or
	// resolved while the context is set get linked to it.
	AssemblyID *int `json:"assembly_id,omitempty" gorm:"column:assembly_id"`
	ElectionID *int `json:"election_id,omitempty" gorm:"column:election_id"`

	Name             string        `json:"name" gorm:"column:name;type:varchar(255);not null"`
	OriginalFilename string        `json:"original_filename" gorm:"column:original_filename;type:varchar(255)"`
	StoredPath       string        `json:"-" gorm:"column:stored_path;type:varchar(512);not null"`
	FileSize         int64         `json:"file_size" gorm:"column:file_size"`
	Mode             string        `json:"mode" gorm:"column:mode;type:enum('insert','update','both');not null;default:'both'"`
	FieldMappings    FieldMappings `json:"field_mappings" gorm:"column:field_mappings;type:json"`
	UpdateFields     JSONStrings   `json:"update_fields" gorm:"column:update_fields;type:json"`
	BatchSize        int           `json:"batch_size" gorm:"column:batch_size;not null;default:50"`

	Status          string          `json:"status" gorm:"column:status;type:enum('pending','processing','completed','failed');not null;default:'pending'"`
	TotalRows       int64           `json:"total_rows" gorm:"column:total_rows;not null;default:0"`
	TotalIsEstimate bool            `json:"total_is_estimate" gorm:"column:total_is_estimate;not null;default:0"`
	ProcessedRows   int64           `json:"processed_rows" gorm:"column:processed_rows;not null;default:0"`
	SuccessfulRows  int64           `json:"successful_rows" gorm:"column:successful_rows;not null;default:0"`
	FailedRows      int64           `json:"failed_rows" gorm:"column:failed_rows;not null;default:0"`
	RowErrors       ImportRowErrors `json:"row_errors" gorm:"column:row_errors;type:json"`
	ErrorMessage    *string         `json:"error_message,omitempty" gorm:"column:error_message;type:text"`

	StartedAt     *time.Time `json:"started_at,omitempty" gorm:"column:started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" gorm:"column:completed_at"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty" gorm:"column:last_heartbeat"`

	CreatedBy int            `json:"created_by" gorm:"column:created_by;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"column:deleted_at;index"`
}

func (ImportJob) TableName() string { return "import_jobs" }

// HasContext reports whether the job was launched from a roster context.
func (j *ImportJob) HasContext() bool {
	return j.AssemblyID != nil || j.ElectionID != nil
}

// IsTerminal reports whether the job reached a final status.
func (j *ImportJob) IsTerminal() bool {
	return j.Status == ImportJobStatusCompleted || j.Status == ImportJobStatusFailed
}

// EffectiveBatchSize returns the configured batch size or the default.
func (j *ImportJob) EffectiveBatchSize() int {
	if j.BatchSize <= 0 {
		return DefaultImportBatchSize
	}
	return j.BatchSize
}
