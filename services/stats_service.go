package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/backoffice/utils"
	"gorm.io/gorm"
)

type UserMeters struct {
	Usuario string  `json:"usuario"`
	Metros  float64 `json:"metros"`
}

type MetersReport struct {
	Date  string       `json:"date"`
	Month string       `json:"month"`
	Data  []UserMeters `json:"data"`
}

type StatsService struct {
	DB *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db}
}

// MetersByUser sums os.metros per user over the month containing date,
// largest first. Users without meters are left out.
func (s *StatsService) MetersByUser(ctx context.Context, date string) (*MetersReport, error) {
	first, last, month, err := utils.MonthBounds(date)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Usuario     string          `gorm:"column:usuario"`
		TotalMetros decimal.Decimal `gorm:"column:total_metros"`
	}
	err = s.DB.WithContext(ctx).Raw(`SELECT
	u.nome AS usuario,
	COALESCE(SUM(CAST(o.metros AS DECIMAL(15,2))), 0) AS total_metros
FROM usuarios u
LEFT JOIN os o ON u.idUsuarios = o.usuarios_id
	AND o.dataInicial >= ?
	AND o.dataInicial <= ?
	AND o.metros IS NOT NULL
GROUP BY u.idUsuarios, u.nome
HAVING COALESCE(SUM(CAST(o.metros AS DECIMAL(15,2))), 0) > 0
ORDER BY total_metros DESC`, first, last).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("meters by user: %w", err)
	}

	report := &MetersReport{Date: date, Month: month, Data: make([]UserMeters, 0, len(rows))}
	for _, r := range rows {
		report.Data = append(report.Data, UserMeters{Usuario: r.Usuario, Metros: r.TotalMetros.InexactFloat64()})
	}
	return report, nil
}
