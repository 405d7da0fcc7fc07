package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sahilchouksey/gradgrid/model"
)

// stuckProcessingCutoff is how long a university may sit in processing
// before the job declares the enrichment cycle dead. Worst-case cycles
// (many columns, throttled backend) finish well inside an hour.
const stuckProcessingCutoff = time.Hour

// FailStuckProcessing transitions universities stuck in processing to
// failed and notifies their owners' grids. A crashed enrichment
// goroutine otherwise leaves the row spinning forever.
func (m *CronManager) FailStuckProcessing() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "fail_stuck_processing"
	cutoff := time.Now().Add(-stuckProcessingCutoff)

	var stuck []model.University
	err := m.db.Where("status = ? AND last_updated < ?", model.StatusProcessing, cutoff).
		Find(&stuck).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query stuck universities: %w", err))
		return
	}

	if len(stuck) == 0 {
		m.logJobComplete(jobName, "No stuck universities found", nil)
		return
	}

	failed := 0
	for _, uni := range stuck {
		err := m.db.WithContext(ctx).Model(&uni).Updates(map[string]interface{}{
			"status":       model.StatusFailed,
			"last_updated": time.Now(),
		}).Error
		if err != nil {
			log.Printf("[CRON] Failed to mark university %s failed: %v", uni.ID, err)
			failed++
			continue
		}

		if err := m.broker.PublishUniversity(ctx, model.UniversityEvent{
			UserEmail:    uni.UserEmail,
			UniversityID: uni.ID,
			Status:       model.StatusFailed,
		}); err != nil {
			log.Printf("[CRON] Failed to publish failed status for %s: %v", uni.ID, err)
		}
	}

	m.logJobComplete(jobName, fmt.Sprintf("Failed %d stuck universities, %d errors", len(stuck)-failed, failed),
		map[string]interface{}{"stuck": len(stuck), "errors": failed})
}

// ExpireLapsedSubscriptions flips users whose subscription end date has
// passed to expired and tells each affected grid how many rows just
// went hidden.
func (m *CronManager) ExpireLapsedSubscriptions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "expire_subscriptions"
	now := time.Now()

	var lapsed []model.User
	err := m.db.Where("subscription_status = ? AND subscription_end IS NOT NULL AND subscription_end < ?",
		model.SubscriptionActive, now).
		Find(&lapsed).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query lapsed subscriptions: %w", err))
		return
	}

	if len(lapsed) == 0 {
		m.logJobComplete(jobName, "No lapsed subscriptions found", nil)
		return
	}

	expired := 0
	for _, user := range lapsed {
		err := m.db.WithContext(ctx).Model(&user).
			Update("subscription_status", model.SubscriptionExpired).Error
		if err != nil {
			log.Printf("[CRON] Failed to expire subscription for %s: %v", user.Email, err)
			continue
		}
		expired++

		if user.IsPremium {
			// Premium users keep full visibility regardless of tier
			continue
		}

		var total int64
		if err := m.db.Model(&model.University{}).
			Where("user_email = ?", user.Email).
			Count(&total).Error; err != nil {
			log.Printf("[CRON] Failed to count universities for %s: %v", user.Email, err)
			continue
		}

		hidden := int(total) - model.FreeRowLimit
		if hidden < 0 {
			hidden = 0
		}
		if err := m.broker.PublishUser(ctx, model.UserEvent{
			UserEmail:               user.Email,
			Type:                    model.UserEventSubscriptionExpired,
			HiddenUniversitiesCount: hidden,
		}); err != nil {
			log.Printf("[CRON] Failed to publish expiry for %s: %v", user.Email, err)
		}
	}

	m.logJobComplete(jobName, fmt.Sprintf("Expired %d of %d lapsed subscriptions", expired, len(lapsed)),
		map[string]interface{}{"lapsed": len(lapsed), "expired": expired})
}

// CleanupOldData removes old data to keep the database clean
// Runs daily at 2 AM
func (m *CronManager) CleanupOldData() {
	jobName := "cleanup_old_data"

	totalCleaned := 0

	// 1. Clean up old cron job logs (keep only last 90 days)
	cutoffLogs := time.Now().Add(-90 * 24 * time.Hour)
	result := m.db.Where("created_at < ?", cutoffLogs).Delete(&model.CronJobLog{})
	if result.Error != nil {
		log.Printf("[CRON] Failed to clean cron logs: %v", result.Error)
	} else {
		log.Printf("[CRON] Cleaned %d old cron logs", result.RowsAffected)
		totalCleaned += int(result.RowsAffected)
	}

	// 2. Hard-delete universities soft-deleted more than 30 days ago,
	// cell values cascade
	cutoffDeleted := time.Now().Add(-30 * 24 * time.Hour)
	result = m.db.Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoffDeleted).
		Delete(&model.University{})
	if result.Error != nil {
		log.Printf("[CRON] Failed to purge deleted universities: %v", result.Error)
	} else {
		log.Printf("[CRON] Purged %d deleted universities", result.RowsAffected)
		totalCleaned += int(result.RowsAffected)
	}

	// 3. Same for soft-deleted columns
	result = m.db.Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoffDeleted).
		Delete(&model.Column{})
	if result.Error != nil {
		log.Printf("[CRON] Failed to purge deleted columns: %v", result.Error)
	} else {
		log.Printf("[CRON] Purged %d deleted columns", result.RowsAffected)
		totalCleaned += int(result.RowsAffected)
	}

	m.logJobComplete(jobName, fmt.Sprintf("Cleaned up %d total records", totalCleaned),
		map[string]interface{}{"cleaned": totalCleaned})
}
