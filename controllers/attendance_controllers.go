package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/backoffice/services"
	"github.com/yeremiapane/backoffice/utils"
)

type AttendanceController struct {
	Attendance *services.AttendanceService
}

func NewAttendanceController(attendance *services.AttendanceService) *AttendanceController {
	return &AttendanceController{Attendance: attendance}
}

func (ac *AttendanceController) Daily(c *gin.Context) {
	date, ok := queryDate(c)
	if !ok {
		return
	}

	report, err := ac.Attendance.Daily(c.Request.Context(), date)
	if err != nil {
		utils.RespondInternal(c, "attendance", "Error al obtener datos de asistencia", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
