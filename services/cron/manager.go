package cron

import (
	"encoding/json"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/gradgrid/model"
	"github.com/sahilchouksey/gradgrid/services/events"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron   *cron.Cron
	db     *gorm.DB
	broker *events.Broker
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, broker *events.Broker) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:   c,
		db:     db,
		broker: broker,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	// Register all jobs
	if err := m.registerJobs(); err != nil {
		return err
	}

	// Start the cron scheduler
	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Every 5 minutes: fail universities stuck in processing
	_, err := m.cron.AddFunc("0 */5 * * * *", func() {
		m.logJobStart("fail_stuck_processing")
		m.FailStuckProcessing()
	})
	if err != nil {
		return err
	}

	// 2. Every 15 minutes: expire lapsed subscriptions
	_, err = m.cron.AddFunc("0 */15 * * * *", func() {
		m.logJobStart("expire_subscriptions")
		m.ExpireLapsedSubscriptions()
	})
	if err != nil {
		return err
	}

	// 3. Daily at 2 AM: Cleanup old data
	_, err = m.cron.AddFunc("0 0 2 * * *", func() {
		m.logJobStart("cleanup_old_data")
		m.CleanupOldData()
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))

	// Log to database
	cronLog := model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: time.Now(),
	}
	m.db.Create(&cronLog)
}

// logJobComplete logs successful completion of a cron job. counters are
// persisted as jsonb metadata (may be nil).
func (m *CronManager) logJobComplete(jobName string, message string, counters map[string]interface{}) {
	log.Printf("[CRON] Completed job: %s - %s", jobName, message)

	updates := map[string]interface{}{
		"status":       "completed",
		"completed_at": time.Now(),
		"message":      message,
	}
	if len(counters) > 0 {
		if metadataJSON, err := json.Marshal(counters); err == nil {
			updates["metadata"] = datatypes.JSON(metadataJSON)
		}
	}

	// Update database log
	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(updates)
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] Error in job: %s - %v", jobName, err)

	// Update database log
	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "failed",
			"completed_at": time.Now(),
			"error_msg":    err.Error(),
		})
}
