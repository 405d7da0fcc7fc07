package university

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sahilchouksey/gradgrid/model"
	"github.com/sahilchouksey/gradgrid/services"
	"github.com/sahilchouksey/gradgrid/utils/middleware"
	"github.com/sahilchouksey/gradgrid/utils/response"
	"github.com/sahilchouksey/gradgrid/utils/validation"
	"gorm.io/gorm"
)

// UniversityHandler handles university-related requests
type UniversityHandler struct {
	db         *gorm.DB
	validator  *validation.Validator
	enrichment *services.EnrichmentService
}

// NewUniversityHandler creates a new university handler
func NewUniversityHandler(db *gorm.DB, enrichment *services.EnrichmentService) *UniversityHandler {
	return &UniversityHandler{
		db:         db,
		validator:  validation.NewValidator(),
		enrichment: enrichment,
	}
}

// CreateUniversityRequest represents the request body for adding a university
type CreateUniversityRequest struct {
	Name string `json:"name" validate:"required,min=2,max=255"`
	URL  string `json:"url" validate:"omitempty,url,max=512"`
}

// DetailsRequest asks for full snapshots of a batch of universities
type DetailsRequest struct {
	Universities []string `json:"universities" validate:"required,min=1,max=200"`
}

// ListUniversities handles GET /api/universities
func (h *UniversityHandler) ListUniversities(c *fiber.Ctx) error {
	email, ok := middleware.GetUserEmail(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var universities []model.University
	if err := h.db.Where("user_email = ?", email).
		Order("created_at ASC").
		Find(&universities).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch universities")
	}

	return response.Success(c, universities)
}

// GetDetails handles POST /api/universities/details. One batched call
// replaces per-row detail requests; ids the user does not own are
// silently omitted from the result.
func (h *UniversityHandler) GetDetails(c *fiber.Ctx) error {
	email, ok := middleware.GetUserEmail(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req DetailsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var universities []model.University
	if err := h.db.Where("user_email = ? AND id IN ?", email, req.Universities).
		Order("created_at ASC").
		Find(&universities).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch university details")
	}

	return response.Success(c, universities)
}

// CreateUniversity handles POST /api/universities. The row is returned
// immediately in pending state; enrichment runs in the background and
// streams results over the push channel.
func (h *UniversityHandler) CreateUniversity(c *fiber.Ctx) error {
	email, ok := middleware.GetUserEmail(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req CreateUniversityRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	req.Name = validation.SanitizeString(req.Name)
	req.URL = validation.SanitizeString(req.URL)

	// Same name twice is almost always a double-submit
	var existing model.University
	if err := h.db.Where("user_email = ? AND name = ?", email, req.Name).
		First(&existing).Error; err == nil {
		return response.Conflict(c, "University is already being tracked")
	}

	university := model.University{
		ID:          uuid.New().String(),
		UserEmail:   email,
		Name:        req.Name,
		URL:         req.URL,
		Status:      model.StatusPending,
		LastUpdated: time.Now(),
	}

	if err := h.db.Create(&university).Error; err != nil {
		return response.InternalServerError(c, "Failed to create university")
	}

	// Detached from the request: the cycle outlives this handler
	go h.enrichment.EnrichUniversity(context.Background(), university.ID)

	return response.Created(c, university)
}

// DeleteUniversity handles DELETE /api/universities/:id
func (h *UniversityHandler) DeleteUniversity(c *fiber.Ctx) error {
	id := c.Params("id")
	email, ok := middleware.GetUserEmail(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var university model.University
	if err := h.db.First(&university, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "University not found")
		}
		return response.InternalServerError(c, "Failed to fetch university")
	}
	if university.UserEmail != email {
		return response.Forbidden(c, "Not your university")
	}

	// Cell values go with the row, in the same transaction
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("university_id = ?", id).Delete(&model.CellValue{}).Error; err != nil {
			return err
		}
		return tx.Delete(&university).Error
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to delete university")
	}

	return response.SuccessWithMessage(c, "University deleted successfully", nil)
}
