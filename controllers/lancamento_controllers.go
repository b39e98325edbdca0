package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/backoffice/services"
	"github.com/yeremiapane/backoffice/utils"
)

type LancamentoController struct {
	Lancamentos *services.LancamentoService
}

func NewLancamentoController(lancamentos *services.LancamentoService) *LancamentoController {
	return &LancamentoController{Lancamentos: lancamentos}
}

func (lc *LancamentoController) Summary(c *gin.Context) {
	lc.serve(c, "Error al obtener resumen", func(ctx context.Context, date string) (interface{}, error) {
		return lc.Lancamentos.DailySummary(ctx, date)
	})
}

// Realizadas reports what was already paid up to the date.
func (lc *LancamentoController) Realizadas(c *gin.Context) {
	lc.serve(c, "Error al obtener datos", func(ctx context.Context, date string) (interface{}, error) {
		return lc.Lancamentos.Realized(ctx, date)
	})
}

// Pendientes reports movements without payment date or paid after the date.
func (lc *LancamentoController) Pendientes(c *gin.Context) {
	lc.serve(c, "Error al obtener datos", func(ctx context.Context, date string) (interface{}, error) {
		return lc.Lancamentos.Pending(ctx, date)
	})
}

func (lc *LancamentoController) Prevision(c *gin.Context) {
	lc.serve(c, "Error al obtener datos", func(ctx context.Context, date string) (interface{}, error) {
		return lc.Lancamentos.Forecast(ctx, date)
	})
}

func (lc *LancamentoController) serve(c *gin.Context, message string, fetch func(context.Context, string) (interface{}, error)) {
	date, ok := queryDate(c)
	if !ok {
		return
	}

	out, err := fetch(c.Request.Context(), date)
	if err != nil {
		utils.RespondInternal(c, "lancamentos", message, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
