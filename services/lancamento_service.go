package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// valorExpr reads lancamentos.valor, which is text with comma decimals.
const valorExpr = "CAST(REPLACE(valor, ',', '.') AS DECIMAL(15,2))"

type TypeTotal struct {
	Cantidad int64   `json:"cantidad"`
	Total    float64 `json:"total"`
}

type MethodFlow struct {
	Entradas float64 `json:"entradas"`
	Salidas  float64 `json:"salidas"`
}

type LancamentoSummary struct {
	Date                   string                `json:"date"`
	Operaciones            int64                 `json:"operaciones"`
	TotalNeto              float64               `json:"totalNeto"`
	ByPaymentMethod        map[string]float64    `json:"byPaymentMethod"`
	ByPaymentMethodDetails map[string]MethodFlow `json:"byPaymentMethodDetails"`
	ByType                 map[string]TypeTotal  `json:"byType"`
}

// CashTotals is the ventas/gastos pair of the realizadas and pendientes reports.
type CashTotals struct {
	Date   string  `json:"date"`
	Ventas float64 `json:"ventas"`
	Gastos float64 `json:"gastos"`
}

type CashForecast struct {
	Date        string  `json:"date"`
	EnCajaAhora float64 `json:"enCajaAhora"`
	AEntrar     float64 `json:"aEntrar"`
}

type LancamentoService struct {
	DB *gorm.DB
}

func NewLancamentoService(db *gorm.DB) *LancamentoService {
	return &LancamentoService{DB: db}
}

// paymentMethodKey buckets a free-text forma_pgto. Unknown methods are
// counted in the totals but not in any bucket.
func paymentMethodKey(method string) string {
	m := strings.ToLower(method)
	switch {
	case strings.Contains(m, "mercado"), strings.Contains(m, "mp"):
		return "mercadoPago"
	case strings.Contains(m, "efectivo"):
		return "efectivo"
	case strings.Contains(m, "cheque"):
		return "cheque"
	}
	return ""
}

// DailySummary reports the movements paid on date. Gastos count negative
// in totalNeto and byPaymentMethod.
func (s *LancamentoService) DailySummary(ctx context.Context, date string) (*LancamentoSummary, error) {
	db := s.DB.WithContext(ctx)

	var total struct {
		Operaciones int64           `gorm:"column:operaciones"`
		TotalNeto   decimal.Decimal `gorm:"column:totalNeto"`
	}
	err := db.Raw(`SELECT
	COUNT(*) AS operaciones,
	COALESCE(SUM(CASE WHEN tipo = 'Gasto' THEN -`+valorExpr+` ELSE `+valorExpr+` END), 0) AS totalNeto
FROM lancamentos
WHERE data_pagamento = ?`, date).Scan(&total).Error
	if err != nil {
		return nil, fmt.Errorf("lancamentos total: %w", err)
	}

	var detailed []struct {
		FormaPgto *string         `gorm:"column:forma_pgto"`
		Tipo      *string         `gorm:"column:tipo"`
		Cantidad  int64           `gorm:"column:cantidad"`
		Total     decimal.Decimal `gorm:"column:total"`
	}
	err = db.Raw(`SELECT
	forma_pgto,
	tipo,
	COUNT(*) AS cantidad,
	COALESCE(SUM(`+valorExpr+`), 0) AS total
FROM lancamentos
WHERE data_pagamento = ?
GROUP BY forma_pgto, tipo`, date).Scan(&detailed).Error
	if err != nil {
		return nil, fmt.Errorf("lancamentos by method: %w", err)
	}

	byMethod := map[string]decimal.Decimal{
		"mercadoPago": decimal.Zero,
		"efectivo":    decimal.Zero,
		"cheque":      decimal.Zero,
	}
	flows := map[string]struct{ in, out decimal.Decimal }{
		"mercadoPago": {decimal.Zero, decimal.Zero},
		"efectivo":    {decimal.Zero, decimal.Zero},
		"cheque":      {decimal.Zero, decimal.Zero},
	}
	types := map[string]struct {
		n     int64
		total decimal.Decimal
	}{
		"venta":    {0, decimal.Zero},
		"adelanto": {0, decimal.Zero},
		"gasto":    {0, decimal.Zero},
	}

	for _, row := range detailed {
		tipo := ""
		if row.Tipo != nil {
			tipo = *row.Tipo
		}
		method := ""
		if row.FormaPgto != nil {
			method = *row.FormaPgto
		}

		if t, ok := types[strings.ToLower(tipo)]; ok {
			t.n += row.Cantidad
			t.total = t.total.Add(row.Total)
			types[strings.ToLower(tipo)] = t
		}

		key := paymentMethodKey(method)
		if key == "" {
			continue
		}
		f := flows[key]
		switch tipo {
		case "Gasto":
			f.out = f.out.Add(row.Total)
			byMethod[key] = byMethod[key].Sub(row.Total)
		case "Venta", "Adelanto":
			f.in = f.in.Add(row.Total)
			byMethod[key] = byMethod[key].Add(row.Total)
		default:
			f.in = f.in.Add(row.Total)
		}
		flows[key] = f
	}

	out := &LancamentoSummary{
		Date:                   date,
		Operaciones:            total.Operaciones,
		TotalNeto:              total.TotalNeto.InexactFloat64(),
		ByPaymentMethod:        make(map[string]float64, len(byMethod)),
		ByPaymentMethodDetails: make(map[string]MethodFlow, len(flows)),
		ByType:                 make(map[string]TypeTotal, len(types)),
	}
	for k, v := range byMethod {
		out.ByPaymentMethod[k] = v.InexactFloat64()
	}
	for k, f := range flows {
		out.ByPaymentMethodDetails[k] = MethodFlow{Entradas: f.in.InexactFloat64(), Salidas: f.out.InexactFloat64()}
	}
	for k, t := range types {
		out.ByType[k] = TypeTotal{Cantidad: t.n, Total: t.total.InexactFloat64()}
	}
	return out, nil
}

type cashSplit struct {
	Ingresos decimal.Decimal `gorm:"column:ingresos"`
	Ventas   decimal.Decimal `gorm:"column:ventas"`
	Gastos   decimal.Decimal `gorm:"column:gastos"`
}

const (
	realizedWhere = "data_pagamento IS NOT NULL AND data_pagamento <= ?"
	pendingWhere  = "(data_pagamento IS NULL OR data_pagamento > ?)"
)

func (s *LancamentoService) split(ctx context.Context, where, date string) (cashSplit, error) {
	var out cashSplit
	err := s.DB.WithContext(ctx).Raw(`SELECT
	COALESCE(SUM(CASE WHEN tipo = 'Venta' OR tipo = 'Adelanto' THEN `+valorExpr+` ELSE 0 END), 0) AS ingresos,
	COALESCE(SUM(CASE WHEN tipo = 'Venta' THEN `+valorExpr+` ELSE 0 END), 0) AS ventas,
	COALESCE(SUM(CASE WHEN tipo = 'Gasto' THEN `+valorExpr+` ELSE 0 END), 0) AS gastos
FROM lancamentos
WHERE `+where, date).Scan(&out).Error
	return out, err
}

// Realized sums ventas and gastos paid on or before date.
func (s *LancamentoService) Realized(ctx context.Context, date string) (*CashTotals, error) {
	sp, err := s.split(ctx, realizedWhere, date)
	if err != nil {
		return nil, fmt.Errorf("lancamentos realized: %w", err)
	}
	return &CashTotals{Date: date, Ventas: sp.Ventas.InexactFloat64(), Gastos: sp.Gastos.InexactFloat64()}, nil
}

// Pending sums ventas and gastos without payment date or paid after date.
func (s *LancamentoService) Pending(ctx context.Context, date string) (*CashTotals, error) {
	sp, err := s.split(ctx, pendingWhere, date)
	if err != nil {
		return nil, fmt.Errorf("lancamentos pending: %w", err)
	}
	return &CashTotals{Date: date, Ventas: sp.Ventas.InexactFloat64(), Gastos: sp.Gastos.InexactFloat64()}, nil
}

// Forecast returns the cash at date and the expected cash once every
// pending movement settles. Adelantos count as income.
func (s *LancamentoService) Forecast(ctx context.Context, date string) (*CashForecast, error) {
	done, err := s.split(ctx, realizedWhere, date)
	if err != nil {
		return nil, fmt.Errorf("lancamentos forecast: %w", err)
	}
	pending, err := s.split(ctx, pendingWhere, date)
	if err != nil {
		return nil, fmt.Errorf("lancamentos forecast: %w", err)
	}

	now := done.Ingresos.Sub(done.Gastos)
	later := now.Add(pending.Ingresos).Sub(pending.Gastos)
	return &CashForecast{Date: date, EnCajaAhora: now.InexactFloat64(), AEntrar: later.InexactFloat64()}, nil
}
