package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/backoffice/services"
	"github.com/yeremiapane/backoffice/utils"
)

type PaymentController struct {
	Payments *services.PaymentService
}

func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{Payments: payments}
}

// Today summarises the payments of ?date= (default today) by origin.
func (pc *PaymentController) Today(c *gin.Context) {
	date, ok := queryDate(c)
	if !ok {
		return
	}

	summary, err := pc.Payments.DailySummary(c.Request.Context(), date)
	if err != nil {
		utils.RespondInternal(c, "payments", "Error al obtener resumen de pagos", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
