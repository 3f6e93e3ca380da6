package handlers

import (
	"context"
	"net/http"

	"swadhan-eats/internal/models"

	"github.com/gin-gonic/gin"
)

// MenuReader lists the dishes a restaurant currently offers.
type MenuReader interface {
	GetByRestaurantID(ctx context.Context, restaurantID string, limit, offset int) ([]models.Dish, error)
}

type MenuHandler struct {
	dishes MenuReader
}

func NewMenuHandler(dishes MenuReader) *MenuHandler {
	return &MenuHandler{dishes: dishes}
}

// @Summary List a restaurant's available dishes
// @Tags menu
// @Produce json
// @Param restaurant_id path string true "Restaurant ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Dish
// @Router /api/v1/restaurants/{restaurant_id}/dishes [get]
func (h *MenuHandler) GetDishes(c *gin.Context) {
	limit, offset := pagination(c)
	dishes, err := h.dishes.GetByRestaurantID(c.Request.Context(), c.Param("restaurant_id"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to get dishes",
			Message: err.Error(),
		})
		return
	}
	if dishes == nil {
		dishes = []models.Dish{}
	}
	c.JSON(http.StatusOK, dishes)
}

func (h *MenuHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/restaurants/:restaurant_id/dishes", h.GetDishes)
}
