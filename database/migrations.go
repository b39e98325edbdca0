package database

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/yeremiapane/backoffice/models"
	"github.com/yeremiapane/backoffice/utils"
	"gorm.io/gorm"
)

//go:embed sql/triggers.sql
var triggerSQL string

// Trigger names created by sql/triggers.sql.
var triggerNames = []string{"os_event_bus_insert", "os_event_bus_update"}

// Migrate creates the tables that do not exist yet. Existing legacy tables
// are left untouched. The event table is created under the configured name.
func Migrate(db *gorm.DB, eventTable string) error {
	m := db.Migrator()
	for _, model := range models.All() {
		if _, ok := model.(*models.BusEvent); ok {
			continue
		}
		if m.HasTable(model) {
			continue
		}
		if err := m.CreateTable(model); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
		utils.InfoLogger.Printf("[migrate] created table for %T", model)
	}

	if eventTable == "" {
		eventTable = models.BusEvent{}.TableName()
	}
	if !m.HasTable(eventTable) {
		if err := db.Table(eventTable).Migrator().CreateTable(&models.BusEvent{}); err != nil {
			return fmt.Errorf("create %s: %w", eventTable, err)
		}
		utils.InfoLogger.Printf("[migrate] created table %s", eventTable)
	}
	return nil
}

// TriggerStatements returns the trigger DDL for eventTable, one statement
// per element.
func TriggerStatements(eventTable string) []string {
	body := strings.ReplaceAll(triggerSQL, "{{table}}", eventTable)

	var out []string
	for _, stmt := range strings.Split(body, "//") {
		if stmt = strings.TrimSpace(stmt); stmt != "" && stmt != ";" {
			out = append(out, stmt)
		}
	}
	return out
}

// InstallTriggers makes every insert or update on os append a row to the
// event table, so writers outside this service also reach SSE clients on
// the table bus. It only runs on MySQL.
func InstallTriggers(db *gorm.DB, eventTable string) error {
	if db.Dialector.Name() != "mysql" {
		utils.InfoLogger.Printf("[migrate] skipping triggers on %s", db.Dialector.Name())
		return nil
	}

	for _, stmt := range TriggerStatements(eventTable) {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("trigger statement failed: %w", err)
		}
	}

	var triggers []struct {
		Name   string `gorm:"column:trigger_name"`
		Event  string `gorm:"column:event_type"`
		Table  string `gorm:"column:table_name"`
		Timing string `gorm:"column:timing"`
	}
	err := db.Raw(`SELECT
	TRIGGER_NAME AS trigger_name,
	EVENT_MANIPULATION AS event_type,
	EVENT_OBJECT_TABLE AS table_name,
	ACTION_TIMING AS timing
FROM information_schema.triggers
WHERE TRIGGER_SCHEMA = DATABASE() AND EVENT_OBJECT_TABLE = 'os'`).Scan(&triggers).Error
	if err != nil {
		return fmt.Errorf("verify triggers: %w", err)
	}
	for _, t := range triggers {
		utils.InfoLogger.Printf("[migrate] trigger %s (%s %s on %s)", t.Name, t.Timing, t.Event, t.Table)
	}
	return nil
}

// TriggersInstalled reports whether both os triggers exist and write to
// eventTable. On anything but MySQL it is always false.
func TriggersInstalled(db *gorm.DB, eventTable string) (bool, error) {
	if db.Dialector.Name() != "mysql" {
		return false, nil
	}
	if eventTable == "" {
		eventTable = models.BusEvent{}.TableName()
	}

	var n int64
	err := db.Raw(`SELECT COUNT(*)
FROM information_schema.triggers
WHERE TRIGGER_SCHEMA = DATABASE()
	AND EVENT_OBJECT_TABLE = 'os'
	AND TRIGGER_NAME IN ?
	AND ACTION_STATEMENT LIKE ?`, triggerNames, "%INSERT INTO "+eventTable+" %").Scan(&n).Error
	if err != nil {
		return false, fmt.Errorf("look up triggers: %w", err)
	}
	return n == int64(len(triggerNames)), nil
}
