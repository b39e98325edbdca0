package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/backoffice/config"
	"github.com/yeremiapane/backoffice/utils"
	"gorm.io/gorm"
)

type HealthController struct {
	DB       *gorm.DB
	Database string
	started  time.Time
}

func NewHealthController(db *gorm.DB, database string) *HealthController {
	return &HealthController{DB: db, Database: database, started: time.Now()}
}

// Health pings the database and reports the service identity.
func (hc *HealthController) Health(c *gin.Context) {
	sqlDB, err := hc.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		utils.ErrorLogger.Errorf("[health] DB error: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "DB no disponible"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"name":     config.AppName,
		"version":  config.AppVersion,
		"database": hc.Database,
		"uptime":   time.Since(hc.started).Seconds(),
	})
}
