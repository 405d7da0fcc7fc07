package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/sahilchouksey/gradgrid/model"
	"github.com/sahilchouksey/gradgrid/services/events"
	"github.com/sahilchouksey/gradgrid/services/retrieval"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnrichmentService computes every dynamic column for a university
// through the retrieval backend and streams progress to the owner's
// grid over the push channel. One cell at a time: each computed value
// is persisted and published before the next question is asked, so the
// grid fills in piecemeal instead of all at once.
type EnrichmentService struct {
	db        *gorm.DB
	retrieval *retrieval.Client
	broker    *events.Broker
}

// NewEnrichmentService creates the enrichment driver
func NewEnrichmentService(db *gorm.DB, client *retrieval.Client, broker *events.Broker) *EnrichmentService {
	return &EnrichmentService{
		db:        db,
		retrieval: client,
		broker:    broker,
	}
}

// EnrichUniversity runs one full enrichment cycle: mark processing,
// discover programs, answer every dynamic column, then publish a
// terminal completed or failed status. Intended to run in a goroutine;
// all failures are reported through the push channel and the DB, never
// returned to a request handler.
func (s *EnrichmentService) EnrichUniversity(ctx context.Context, universityID string) {
	var uni model.University
	if err := s.db.First(&uni, "id = ?", universityID).Error; err != nil {
		log.Printf("[enrichment] university %s not found: %v", universityID, err)
		return
	}

	if err := s.setStatus(ctx, &uni, model.StatusProcessing); err != nil {
		log.Printf("[enrichment] failed to mark %s processing: %v", universityID, err)
		return
	}
	s.publishUserProcessing(ctx, uni.UserEmail, universityID)

	if err := s.enrich(ctx, &uni); err != nil {
		log.Printf("[enrichment] university %s failed: %v", universityID, err)
		if err := s.setStatus(ctx, &uni, model.StatusFailed); err != nil {
			log.Printf("[enrichment] failed to mark %s failed: %v", universityID, err)
		}
		return
	}

	if err := s.setStatus(ctx, &uni, model.StatusCompleted); err != nil {
		log.Printf("[enrichment] failed to mark %s completed: %v", universityID, err)
	}
}

func (s *EnrichmentService) enrich(ctx context.Context, uni *model.University) error {
	// Programs are a fixed field, refreshed every cycle
	programs, err := s.retrieval.DiscoverPrograms(ctx, uni.Name, uni.URL)
	if err != nil {
		return fmt.Errorf("program discovery failed: %w", err)
	}
	uni.Programs = pq.StringArray(programs)
	uni.LastUpdated = time.Now()
	if err := s.db.Model(uni).Updates(map[string]interface{}{
		"programs":     uni.Programs,
		"last_updated": uni.LastUpdated,
	}).Error; err != nil {
		return fmt.Errorf("failed to save programs: %w", err)
	}

	columns, err := s.visibleColumns(uni.UserEmail)
	if err != nil {
		return fmt.Errorf("failed to load columns: %w", err)
	}

	failures := 0
	for _, col := range columns {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.computeCell(ctx, uni, col); err != nil {
			// One column failing must not sink the cycle
			log.Printf("[enrichment] column %s failed for university %s: %v", col.ID, uni.ID, err)
			failures++
		}
	}
	if len(columns) > 0 && failures == len(columns) {
		return fmt.Errorf("all %d columns failed", failures)
	}
	return nil
}

// computeCell answers one column, upserts the cell value and publishes
// a column_processed event carrying the fresh value.
func (s *EnrichmentService) computeCell(ctx context.Context, uni *model.University, col model.Column) error {
	question := fmt.Sprintf("What is the %s of this university? Answer concisely based on the university's official information.", col.Title)
	answer, err := s.retrieval.Answer(ctx, retrieval.AnswerRequest{
		Question:       question,
		UniversityName: uni.Name,
		UniversityURL:  uni.URL,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	cell := model.CellValue{
		UniversityID: uni.ID,
		ColumnID:     col.ID,
		Value:        answer,
		LastUpdated:  now,
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "university_id"}, {Name: "column_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "last_updated"}),
	}).Create(&cell).Error
	if err != nil {
		return fmt.Errorf("failed to save cell value: %w", err)
	}

	if err := s.broker.PublishUniversity(ctx, model.UniversityEvent{
		UserEmail:    uni.UserEmail,
		UniversityID: uni.ID,
		Status:       model.StatusColumnProcessed,
		ColumnID:     col.ID,
		Value:        &answer,
	}); err != nil {
		log.Printf("[enrichment] failed to publish column_processed for %s/%s: %v", uni.ID, col.ID, err)
	}
	return nil
}

// visibleColumns returns the dynamic columns the owner's grid shows:
// global columns plus the owner's own.
func (s *EnrichmentService) visibleColumns(userEmail string) ([]model.Column, error) {
	var columns []model.Column
	err := s.db.
		Where("scope = ?", model.ScopeGlobal).
		Or("scope = ? AND owner_email = ?", model.ScopeUser, userEmail).
		Order("created_at ASC").
		Find(&columns).Error
	return columns, err
}

// setStatus persists and publishes a status transition
func (s *EnrichmentService) setStatus(ctx context.Context, uni *model.University, status model.UniversityStatus) error {
	now := time.Now()
	if err := s.db.Model(uni).Updates(map[string]interface{}{
		"status":       status,
		"last_updated": now,
	}).Error; err != nil {
		return err
	}
	uni.Status = status
	uni.LastUpdated = now

	if err := s.broker.PublishUniversity(ctx, model.UniversityEvent{
		UserEmail:    uni.UserEmail,
		UniversityID: uni.ID,
		Status:       status,
	}); err != nil {
		log.Printf("[enrichment] failed to publish status %s for %s: %v", status, uni.ID, err)
	}
	return nil
}

func (s *EnrichmentService) publishUserProcessing(ctx context.Context, userEmail, universityID string) {
	if err := s.broker.PublishUser(ctx, model.UserEvent{
		UserEmail:     userEmail,
		Type:          model.UserEventProcessingStarted,
		UniversityIDs: []string{universityID},
	}); err != nil {
		log.Printf("[enrichment] failed to publish processing_started for %s: %v", universityID, err)
	}
}

// BackfillGlobalColumn computes a freshly created global column for
// every tracked university, one owner at a time. Kicked off by column
// creation; user columns are backfilled by the grid client itself.
func (s *EnrichmentService) BackfillGlobalColumn(ctx context.Context, col model.Column) {
	var owners []string
	err := s.db.Model(&model.University{}).
		Distinct("user_email").
		Pluck("user_email", &owners).Error
	if err != nil {
		log.Printf("[enrichment] failed to list university owners for column %s: %v", col.ID, err)
		return
	}

	for _, email := range owners {
		if err := ctx.Err(); err != nil {
			return
		}
		s.BackfillColumn(ctx, col, email)
	}
}

// BackfillColumn computes one freshly created column for every one of
// the owner's universities, sequentially.
func (s *EnrichmentService) BackfillColumn(ctx context.Context, col model.Column, userEmail string) {
	var universities []model.University
	if err := s.db.Where("user_email = ?", userEmail).Order("created_at ASC").Find(&universities).Error; err != nil {
		log.Printf("[enrichment] failed to list universities for %s: %v", userEmail, err)
		return
	}

	for i := range universities {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := s.computeCell(ctx, &universities[i], col); err != nil {
			log.Printf("[enrichment] backfill failed for university %s column %s: %v", universities[i].ID, col.ID, err)
		}
	}
}
