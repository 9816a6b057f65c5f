package services

import (
	"context"
	"errors"
	"time"

	"github.com/danfelbm/astra-sub000/config"
	"github.com/danfelbm/astra-sub000/models"

	"gorm.io/gorm"
)

var (
	ErrJobNotFound             = errors.New("import job not found")
	ErrConflictNotFound        = errors.New("conflict not found")
	ErrConflictAlreadyResolved = errors.New("conflict already resolved")
)

// ImportJobRepository persists job state and the per-job conflict rows.
// Conflicts are individual rows, never a blob on the job record: resolving one
// is a guarded single-row write, so concurrent operators cannot trample each
// other's resolutions.
type ImportJobRepository interface {
	Create(ctx context.Context, job *models.ImportJob) error
	Get(ctx context.Context, id uint) (*models.ImportJob, error)
	GetForTenant(ctx context.Context, tenantID int, id uint) (*models.ImportJob, error)
	List(ctx context.Context, tenantID, limit, offset int) ([]models.ImportJob, int64, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error

	// ClaimPending atomically flips a pending job to processing. Exactly one
	// concurrent runner wins; the rest get ErrJobNotPending.
	ClaimPending(ctx context.Context, id uint, now time.Time) error

	AddConflict(ctx context.Context, conflict *models.ImportConflict) error
	GetConflict(ctx context.Context, jobID uint, conflictID string) (*models.ImportConflict, error)
	ListConflicts(ctx context.Context, jobID uint) ([]models.ImportConflict, error)
	CountConflicts(ctx context.Context, jobID uint) (int64, error)

	// ClaimConflict atomically flips an unresolved conflict to resolved.
	// Exactly one caller wins a race; the rest get ErrConflictAlreadyResolved.
	ClaimConflict(ctx context.Context, jobID uint, conflictID, resolution string, resolvedBy int) error
	// ReopenConflict reverts a claim whose side effects failed.
	ReopenConflict(ctx context.Context, jobID uint, conflictID string) error
}

// GormImportJobRepository is the MySQL-backed repository.
type GormImportJobRepository struct {
	db *gorm.DB
}

func NewGormImportJobRepository(db *gorm.DB) *GormImportJobRepository {
	if db == nil {
		db = config.DB
	}
	return &GormImportJobRepository{db: db}
}

func (r *GormImportJobRepository) Create(ctx context.Context, job *models.ImportJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *GormImportJobRepository) Get(ctx context.Context, id uint) (*models.ImportJob, error) {
	var job models.ImportJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *GormImportJobRepository) GetForTenant(ctx context.Context, tenantID int, id uint) (*models.ImportJob, error) {
	var job models.ImportJob
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *GormImportJobRepository) List(ctx context.Context, tenantID, limit, offset int) ([]models.ImportJob, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ImportJob{}).
		Where("tenant_id = ?", tenantID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []models.ImportJob
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (r *GormImportJobRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *GormImportJobRepository) ClaimPending(ctx context.Context, id uint, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", id, models.ImportJobStatusPending).
		Updates(map[string]interface{}{
			"status":         models.ImportJobStatusProcessing,
			"started_at":     now,
			"last_heartbeat": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotPending
	}
	return nil
}

func (r *GormImportJobRepository) AddConflict(ctx context.Context, conflict *models.ImportConflict) error {
	return r.db.WithContext(ctx).Create(conflict).Error
}

func (r *GormImportJobRepository) GetConflict(ctx context.Context, jobID uint, conflictID string) (*models.ImportConflict, error) {
	var conflict models.ImportConflict
	err := r.db.WithContext(ctx).
		Where("id = ? AND import_job_id = ?", conflictID, jobID).
		First(&conflict).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConflictNotFound
		}
		return nil, err
	}
	return &conflict, nil
}

func (r *GormImportJobRepository) ListConflicts(ctx context.Context, jobID uint) ([]models.ImportConflict, error) {
	var conflicts []models.ImportConflict
	err := r.db.WithContext(ctx).
		Where("import_job_id = ?", jobID).
		Order("row_number ASC").
		Find(&conflicts).Error
	if err != nil {
		return nil, err
	}
	return conflicts, nil
}

func (r *GormImportJobRepository) CountConflicts(ctx context.Context, jobID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ImportConflict{}).
		Where("import_job_id = ?", jobID).
		Count(&count).Error
	return count, err
}

func (r *GormImportJobRepository) ClaimConflict(ctx context.Context, jobID uint, conflictID, resolution string, resolvedBy int) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.ImportConflict{}).
		Where("id = ? AND import_job_id = ? AND resolved = 0", conflictID, jobID).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolution":  resolution,
			"resolved_at": now,
			"resolved_by": resolvedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the conflict does not exist or someone else resolved it
		// first; distinguish for the caller.
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.ImportConflict{}).
			Where("id = ? AND import_job_id = ?", conflictID, jobID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrConflictNotFound
		}
		return ErrConflictAlreadyResolved
	}
	return nil
}

func (r *GormImportJobRepository) ReopenConflict(ctx context.Context, jobID uint, conflictID string) error {
	return r.db.WithContext(ctx).
		Model(&models.ImportConflict{}).
		Where("id = ? AND import_job_id = ?", conflictID, jobID).
		Updates(map[string]interface{}{
			"resolved":    false,
			"resolution":  nil,
			"resolved_at": nil,
			"resolved_by": nil,
		}).Error
}
