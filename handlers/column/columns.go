package column

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
	"gorm.io/gorm/clause"
)

// ColumnHandler handles column and cell data requests
type ColumnHandler struct {
	db         *gorm.DB
	validator  *validation.Validator
	enrichment *services.EnrichmentService
}

// NewColumnHandler creates a new column handler
func NewColumnHandler(db *gorm.DB, enrichment *services.EnrichmentService) *ColumnHandler {
	return &ColumnHandler{
		db:         db,
		validator:  validation.NewValidator(),
		enrichment: enrichment,
	}
}

// CreateColumnRequest represents the request body for creating a column
type CreateColumnRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Scope string `json:"scope" validate:"omitempty,oneof=user global"`
}

// SaveCellRequest persists one computed cell value
type SaveCellRequest struct {
	UniversityID string `json:"university_id" validate:"required,uuid"`
	ColumnID     string `json:"column_id" validate:"required,uuid"`
	Value        string `json:"value" validate:"required"`
}

// BatchCellRequest asks for all cell data of a batch of universities
type BatchCellRequest struct {
	UniversityIDs []string `json:"university_ids" validate:"required,min=1,max=200"`
}

// CellDatum is one cell in the batch response
type CellDatum struct {
	Value       string    `json:"value"`
	LastUpdated time.Time `json:"last_updated"`
}

// ListColumns handles GET /api/columns: global columns plus the
// session user's own, oldest first.
func (h *ColumnHandler) ListColumns(c *fiber.Ctx) error {
	email, ok := middleware.GetUserEmail(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var columns []model.Column
	err := h.db.
		Where("scope = ?", model.ScopeGlobal).
		Or("scope = ? AND owner_email = ?", model.ScopeUser, email).
		Order("created_at ASC").
		Find(&columns).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch columns")
	}

	return response.Success(c, columns)
}

// CreateColumn handles POST /api/columns. Members create user columns;
// global scope requires admin.
func (h *ColumnHandler) CreateColumn(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req CreateColumnRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	req.Name = validation.SanitizeString(req.Name)

	scope := model.ScopeUser
	if req.Scope == string(model.ScopeGlobal) {
		if !user.IsAdmin() {
			return response.Forbidden(c, "Only administrators can create global columns")
		}
		scope = model.ScopeGlobal
	}

	column := model.Column{
		ID:    uuid.New().String(),
		Title: req.Name,
		Scope: scope,
	}
	if scope == model.ScopeUser {
		column.OwnerEmail = user.Email
	}

	if err := h.db.Create(&column).Error; err != nil {
		return response.InternalServerError(c, "Failed to create column")
	}

	if scope == model.ScopeGlobal {
		// Every existing grid gets values for the new column; results
		// stream in over the push channel as they are computed
		go h.enrichment.BackfillGlobalColumn(context.Background(), column)
	}

	return response.Created(c, fiber.Map{"column": column})
}

// DeleteColumn handles DELETE /api/columns/:id. Ownership rules are
// checked before any mutation; cell values are purged in the same
// transaction as the column so a failed delete leaves both intact.
func (h *ColumnHandler) DeleteColumn(c *fiber.Ctx) error {
	id := c.Params("id")
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	if model.IsFixed(id) {
		return response.Forbidden(c, "Fixed columns cannot be deleted")
	}

	var column model.Column
	if err := h.db.First(&column, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Column not found")
		}
		return response.InternalServerError(c, "Failed to fetch column")
	}

	if !user.IsAdmin() {
		if column.Scope == model.ScopeGlobal {
			return response.Forbidden(c, "Global columns can only be deleted by administrators")
		}
		if column.OwnerEmail != user.Email {
			return response.Forbidden(c, "Not your column")
		}
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("column_id = ?", id).Delete(&model.CellValue{}).Error; err != nil {
			return err
		}
		return tx.Delete(&column).Error
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to delete column")
	}

	return response.SuccessWithMessage(c, "Column deleted successfully", nil)
}

// SaveCellValue handles POST /api/columns/data: upserts one cell,
// stamping last_updated server-side.
func (h *ColumnHandler) SaveCellValue(c *fiber.Ctx) error {
	email, ok := middleware.GetUserEmail(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req SaveCellRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	// The cell must belong to one of the user's universities
	var university model.University
	if err := h.db.First(&university, "id = ? AND user_email = ?", req.UniversityID, email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "University not found")
		}
		return response.InternalServerError(c, "Failed to fetch university")
	}

	cell := model.CellValue{
		UniversityID: req.UniversityID,
		ColumnID:     req.ColumnID,
		Value:        req.Value,
		LastUpdated:  time.Now(),
	}
	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "university_id"}, {Name: "column_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "last_updated"}),
	}).Create(&cell).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to save cell value")
	}

	return response.Success(c, cell)
}

// BatchCellData handles POST /api/columns/data/batch: one query
// covering every requested university, shaped as
// university id -> column id -> datum. Universities with no computed
// cells are simply absent.
func (h *ColumnHandler) BatchCellData(c *fiber.Ctx) error {
	email, ok := middleware.GetUserEmail(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req BatchCellRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var cells []model.CellValue
	err := h.db.
		Joins("JOIN universities ON universities.id = cell_values.university_id").
		Where("universities.user_email = ? AND cell_values.university_id IN ?", email, req.UniversityIDs).
		Find(&cells).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch cell data")
	}

	data := make(map[string]map[string]CellDatum)
	for _, cell := range cells {
		if data[cell.UniversityID] == nil {
			data[cell.UniversityID] = make(map[string]CellDatum)
		}
		data[cell.UniversityID][cell.ColumnID] = CellDatum{
			Value:       cell.Value,
			LastUpdated: cell.LastUpdated,
		}
	}

	return response.Success(c, data)
}
