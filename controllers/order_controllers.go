package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/backoffice/services"
	"github.com/yeremiapane/backoffice/utils"
)

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

// GetOrders lists orders newest first, optionally between two entry dates.
func (oc *OrderController) GetOrders(c *gin.Context) {
	var filter services.OrderFilter

	for _, p := range []struct {
		name string
		dst  *string
	}{{"start_date", &filter.StartDate}, {"end_date", &filter.EndDate}} {
		raw := strings.TrimSpace(c.Query(p.name))
		if raw == "" {
			continue
		}
		date, err := utils.ResolveDate(raw)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		*p.dst = date
	}

	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			utils.RespondResult(c, http.StatusBadRequest, "limit invalido")
			return
		}
		filter.Limit = limit
	}

	orders, err := oc.Orders.List(c.Request.Context(), filter)
	if err != nil {
		utils.RespondInternal(c, "orders", "Error al obtener ordenes", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (oc *OrderController) CreateOrder(c *gin.Context) {
	body := map[string]interface{}{}
	if err := bindOptionalJSON(c, &body); err != nil {
		utils.RespondResult(c, http.StatusBadRequest, "JSON invalido")
		return
	}

	order, err := oc.Orders.Create(c.Request.Context(), body)
	if err != nil {
		oc.fail(c, err, "Error al crear la orden")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"result": true, "id": order.ID, "order": order})
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		utils.RespondResult(c, http.StatusBadRequest, "ID invalido")
		return
	}

	order, err := oc.Orders.Get(c.Request.Context(), id)
	if err != nil {
		oc.fail(c, err, "Error al obtener la orden")
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": true, "order": order})
}

func (oc *OrderController) UpdateOrder(c *gin.Context) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		utils.RespondResult(c, http.StatusBadRequest, "ID invalido")
		return
	}

	body := map[string]interface{}{}
	if err := bindOptionalJSON(c, &body); err != nil {
		utils.RespondResult(c, http.StatusBadRequest, "JSON invalido")
		return
	}

	order, err := oc.Orders.Update(c.Request.Context(), id, body)
	if err != nil {
		oc.fail(c, err, "Error al actualizar la orden")
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": true, "order": order})
}

func (oc *OrderController) fail(c *gin.Context, err error, message string) {
	if verr, ok := isValidation(err); ok {
		utils.RespondResult(c, http.StatusBadRequest, verr.Message)
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		utils.RespondResult(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrEmptyOrder):
		utils.RespondResult(c, http.StatusBadRequest, err.Error())
	default:
		utils.RespondInternal(c, "orders", message, err)
	}
}
