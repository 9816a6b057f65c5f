package services

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/danfelbm/astra-sub000/config"
	"github.com/danfelbm/astra-sub000/models"

	"gorm.io/gorm"
)

const (
	defaultStaleAfter    = 10 * time.Minute
	watchdogPollInterval = time.Minute
)

// staleAfter is how long a processing job may go without a heartbeat before
// the watchdog declares it dead. The orchestrator refreshes last_heartbeat on
// every batch flush, so a silent job is one whose process crashed or was
// killed mid run.
func staleAfter() time.Duration {
	if raw := os.Getenv("IMPORT_STALE_AFTER_MINUTES"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultStaleAfter
}

// StartImportWatchdog launches a background loop that fails import jobs
// stuck in processing with no recent heartbeat. It returns immediately; the
// loop stops when ctx is cancelled.
func StartImportWatchdog(ctx context.Context, db *gorm.DB) {
	if db == nil {
		db = config.DB
	}
	go func() {
		ticker := time.NewTicker(watchdogPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reapStaleImportJobs(ctx, db)
			}
		}
	}()
}

func reapStaleImportJobs(ctx context.Context, db *gorm.DB) {
	cutoff := time.Now().Add(-staleAfter())
	now := time.Now()
	res := db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("status = ?", models.ImportJobStatusProcessing).
		Where("last_heartbeat IS NULL OR last_heartbeat < ?", cutoff).
		Updates(map[string]interface{}{
			"status":        models.ImportJobStatusFailed,
			"error_message": "Import run stopped reporting progress and was marked failed",
			"completed_at":  now,
		})
	if res.Error != nil {
		log.Printf("import watchdog: sweep failed: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("import watchdog: marked %d stale import job(s) as failed", res.RowsAffected)
	}
}
