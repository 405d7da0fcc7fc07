package research

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/gradgrid/model"
	"github.com/sahilchouksey/gradgrid/services/retrieval"
	"github.com/sahilchouksey/gradgrid/utils/middleware"
	"github.com/sahilchouksey/gradgrid/utils/response"
	"github.com/sahilchouksey/gradgrid/utils/validation"
	"gorm.io/gorm"
)

// ResearchHandler proxies ad-hoc retrieval questions from the grid
type ResearchHandler struct {
	db        *gorm.DB
	retrieval *retrieval.Client
	validator *validation.Validator
}

// NewResearchHandler creates a new research handler
func NewResearchHandler(db *gorm.DB, client *retrieval.Client) *ResearchHandler {
	return &ResearchHandler{
		db:        db,
		retrieval: client,
		validator: validation.NewValidator(),
	}
}

// AskRequest represents one retrieval question about a university
type AskRequest struct {
	Question     string `json:"question" validate:"required,min=5,max=500"`
	UniversityID string `json:"university_id" validate:"required,uuid"`
}

// Ask handles POST /api/rag. Synchronous: the caller (the grid's
// column backfill) waits for the answer and persists it itself.
func (h *ResearchHandler) Ask(c *fiber.Ctx) error {
	email, ok := middleware.GetUserEmail(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var university model.University
	if err := h.db.First(&university, "id = ? AND user_email = ?", req.UniversityID, email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "University not found")
		}
		return response.InternalServerError(c, "Failed to fetch university")
	}

	answer, err := h.retrieval.Answer(c.Context(), retrieval.AnswerRequest{
		Question:       validation.SanitizeString(req.Question),
		UniversityName: university.Name,
		UniversityURL:  university.URL,
	})
	if err != nil {
		return response.ServiceUnavailable(c, "Retrieval backend unavailable")
	}

	return response.Success(c, fiber.Map{"answer": answer})
}
