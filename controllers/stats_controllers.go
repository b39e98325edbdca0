package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/backoffice/services"
	"github.com/yeremiapane/backoffice/utils"
)

type StatsController struct {
	Stats *services.StatsService
}

func NewStatsController(stats *services.StatsService) *StatsController {
	return &StatsController{Stats: stats}
}

// MetrosPorUsuario ranks users by square meters sold in the month of ?date=.
func (sc *StatsController) MetrosPorUsuario(c *gin.Context) {
	date, ok := queryDate(c)
	if !ok {
		return
	}

	report, err := sc.Stats.MetersByUser(c.Request.Context(), date)
	if errors.Is(err, services.ErrInvalidDate) {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		utils.RespondInternal(c, "stats", "Error al obtener datos", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
