package subscription

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/gradgrid/model"
	"github.com/sahilchouksey/gradgrid/services/events"
	"github.com/sahilchouksey/gradgrid/utils/cache"
	"github.com/sahilchouksey/gradgrid/utils/middleware"
	"github.com/sahilchouksey/gradgrid/utils/response"
	"gorm.io/gorm"
)

// statusCacheTTL bounds how stale a cached subscription status may be.
const statusCacheTTL = 30 * time.Second

// SubscriptionHandler handles subscription tier requests
type SubscriptionHandler struct {
	db     *gorm.DB
	cache  *cache.RedisCache
	broker *events.Broker
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(db *gorm.DB, redis *cache.RedisCache, broker *events.Broker) *SubscriptionHandler {
	return &SubscriptionHandler{
		db:     db,
		cache:  redis,
		broker: broker,
	}
}

// StatusResponse is the visibility tier the grid filters rows with
type StatusResponse struct {
	SubscriptionStatus model.SubscriptionStatus `json:"subscription_status"`
	IsPremium          bool                     `json:"is_premium"`
}

func statusCacheKey(email string) string {
	return fmt.Sprintf("subscription:status:%s", email)
}

// GetStatus handles GET /api/subscription/status. Served from cache
// when fresh; the grid polls this on every full refresh.
func (h *SubscriptionHandler) GetStatus(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	var cached StatusResponse
	if err := h.cache.GetJSON(c.Context(), statusCacheKey(user.Email), &cached); err == nil {
		return response.Success(c, cached)
	}

	status := StatusResponse{
		SubscriptionStatus: user.SubscriptionStatus,
		IsPremium:          user.IsPremium,
	}
	// Best effort: a failed cache write just means the next poll hits
	// the DB again.
	_ = h.cache.SetJSON(c.Context(), statusCacheKey(user.Email), status, statusCacheTTL)

	return response.Success(c, status)
}

// Reactivate handles POST /api/subscription/reactivate: flips the tier
// back to active and tells the user's grids, which respond by fetching
// the newly revealed rows.
func (h *SubscriptionHandler) Reactivate(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	if user.SubscriptionStatus == model.SubscriptionActive {
		return response.BadRequest(c, "Subscription is already active")
	}

	end := time.Now().AddDate(0, 1, 0)
	err := h.db.Model(user).Updates(map[string]interface{}{
		"subscription_status": model.SubscriptionActive,
		"subscription_end":    end,
	}).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to reactivate subscription")
	}

	// Drop the cached tier so the next status poll sees the change
	_ = h.cache.Delete(c.Context(), statusCacheKey(user.Email))

	if err := h.broker.PublishUser(c.Context(), model.UserEvent{
		UserEmail: user.Email,
		Type:      model.UserEventSubscriptionReactivated,
	}); err != nil {
		return response.InternalServerError(c, "Reactivated but failed to notify clients")
	}

	return response.SuccessWithMessage(c, "Subscription reactivated", StatusResponse{
		SubscriptionStatus: model.SubscriptionActive,
		IsPremium:          user.IsPremium,
	})
}
