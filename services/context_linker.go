package services

import (
	"context"

	"github.com/danfelbm/astra-sub000/config"
	"github.com/danfelbm/astra-sub000/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContextLinker attaches a person to the roster the import was launched from.
// Linking happens at insert time for clean rows and after resolution for rows
// that were deferred to the conflict list before the auto-link could run.
type ContextLinker interface {
	Link(ctx context.Context, job *models.ImportJob, personID int) error
}

// GormContextLinker writes the assembly/election join rows, idempotently.
type GormContextLinker struct {
	db *gorm.DB
}

func NewGormContextLinker(db *gorm.DB) *GormContextLinker {
	if db == nil {
		db = config.DB
	}
	return &GormContextLinker{db: db}
}

func (l *GormContextLinker) Link(ctx context.Context, job *models.ImportJob, personID int) error {
	switch {
	case job.AssemblyID != nil:
		row := &models.AssemblyParticipant{AssemblyID: *job.AssemblyID, PersonID: personID}
		return l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	case job.ElectionID != nil:
		row := &models.ElectionVoter{ElectionID: *job.ElectionID, PersonID: personID}
		return l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	}
	return nil
}
