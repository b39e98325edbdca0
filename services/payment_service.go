package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/backoffice/models"
	"gorm.io/gorm"
)

// PaymentItem is the per-origin block of the daily payments summary.
type PaymentItem struct {
	Origen           string          `json:"origen"`
	Key              string          `json:"key"`
	Operaciones      int64           `json:"operaciones"`
	TotalBruto       float64         `json:"totalBruto"`
	TotalDescuento   float64         `json:"totalDescuento"`
	TotalNeto        float64         `json:"totalNeto"`
	Detalles         []MpOrderDetail `json:"detalles,omitempty"`
	TotalValorPagado *float64        `json:"totalValorPagado,omitempty"`
}

type PaymentAggregate struct {
	Operaciones    int64   `json:"operaciones"`
	TotalBruto     float64 `json:"totalBruto"`
	TotalDescuento float64 `json:"totalDescuento"`
	TotalNeto      float64 `json:"totalNeto"`
}

type MpOrderDetail struct {
	IDPago      int64   `json:"idPago"`
	Fecha       *string `json:"fecha"`
	OsID        int64   `json:"osId"`
	ValorPagado float64 `json:"valorPagado"`
}

type MpOrdersSummary struct {
	Date             string          `json:"date"`
	TotalValorPagado float64         `json:"totalValorPagado"`
	Operaciones      int             `json:"operaciones"`
	Detalles         []MpOrderDetail `json:"detalles"`
}

type PaymentSummary struct {
	Date      string           `json:"date"`
	Items     []PaymentItem    `json:"items"`
	Aggregate PaymentAggregate `json:"aggregate"`
	MpOrders  MpOrdersSummary  `json:"mpOrders"`
}

// paymentOriginKeys maps pagos.cargadoDesde to the summary key.
var paymentOriginKeys = map[string]string{
	"MP":            "mp",
	"Adelanto":      "adelanto",
	"Área Clientes": "area_clientes",
	"Efectivo":      "efectivo",
}

type PaymentService struct {
	DB *gorm.DB
}

func NewPaymentService(db *gorm.DB) *PaymentService {
	return &PaymentService{DB: db}
}

// MpOrdersSummary sums os.valorPagado of the orders linked to the MP
// payments of date.
func (s *PaymentService) MpOrdersSummary(ctx context.Context, date string) (MpOrdersSummary, error) {
	var rows []struct {
		IDPago      int64           `gorm:"column:idPago"`
		Fecha       models.NullDate `gorm:"column:fecha"`
		OsID        int64           `gorm:"column:osId"`
		ValorPagado decimal.Decimal `gorm:"column:valorPagado"`
	}
	err := s.DB.WithContext(ctx).Raw(`SELECT
	pagos.idPago AS idPago,
	pagos.fecha AS fecha,
	rel.os_id AS osId,
	COALESCE(os.valorPagado, 0) AS valorPagado
FROM pagos
INNER JOIN os_pagos rel ON rel.pagos_id = pagos.idPago
INNER JOIN os ON os.idOs = rel.os_id
WHERE pagos.cargadoDesde = 'MP' AND pagos.fecha = ?
ORDER BY pagos.idPago`, date).Scan(&rows).Error
	if err != nil {
		return MpOrdersSummary{}, fmt.Errorf("mp orders summary: %w", err)
	}

	out := MpOrdersSummary{Date: date, Detalles: make([]MpOrderDetail, 0, len(rows))}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.ValorPagado)
		out.Detalles = append(out.Detalles, MpOrderDetail{
			IDPago:      r.IDPago,
			Fecha:       r.Fecha.Ptr(),
			OsID:        r.OsID,
			ValorPagado: r.ValorPagado.InexactFloat64(),
		})
	}
	out.Operaciones = len(out.Detalles)
	out.TotalValorPagado = total.InexactFloat64()
	return out, nil
}

// DailySummary groups the payments of date by origin. When MP payments are
// linked to orders, the MP item reports the amounts paid on those orders.
func (s *PaymentService) DailySummary(ctx context.Context, date string) (*PaymentSummary, error) {
	var rows []struct {
		CargadoDesde   *string         `gorm:"column:cargadoDesde"`
		Operaciones    int64           `gorm:"column:operaciones"`
		TotalBruto     decimal.Decimal `gorm:"column:totalBruto"`
		TotalDescuento decimal.Decimal `gorm:"column:totalDescuento"`
		TotalNeto      decimal.Decimal `gorm:"column:totalNeto"`
	}
	err := s.DB.WithContext(ctx).Raw(`SELECT
	cargadoDesde,
	COUNT(*) AS operaciones,
	COALESCE(SUM(pagoTotal), 0) AS totalBruto,
	COALESCE(SUM(descuentoMP), 0) AS totalDescuento,
	COALESCE(SUM(netoRecibido), 0) AS totalNeto
FROM pagos
WHERE fecha = ?
GROUP BY cargadoDesde
ORDER BY cargadoDesde`, date).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("payments summary: %w", err)
	}

	mp, err := s.MpOrdersSummary(ctx, date)
	if err != nil {
		return nil, err
	}

	items := make([]PaymentItem, 0, len(rows)+1)
	for _, r := range rows {
		origen := "Desconocido"
		if r.CargadoDesde != nil && strings.TrimSpace(*r.CargadoDesde) != "" {
			origen = strings.TrimSpace(*r.CargadoDesde)
		}
		key, ok := paymentOriginKeys[origen]
		if !ok {
			key = "desconocido"
		}
		items = append(items, PaymentItem{
			Origen:         origen,
			Key:            key,
			Operaciones:    r.Operaciones,
			TotalBruto:     r.TotalBruto.InexactFloat64(),
			TotalDescuento: r.TotalDescuento.InexactFloat64(),
			TotalNeto:      r.TotalNeto.InexactFloat64(),
		})
	}

	if mp.Operaciones > 0 {
		idx := -1
		for i := range items {
			if items[i].Key == "mp" {
				idx = i
				break
			}
		}
		if idx < 0 {
			items = append(items, PaymentItem{Origen: "MP", Key: "mp"})
			idx = len(items) - 1
		}
		total := mp.TotalValorPagado
		items[idx].Operaciones = int64(mp.Operaciones)
		items[idx].TotalNeto = total
		items[idx].Detalles = mp.Detalles
		items[idx].TotalValorPagado = &total
	}

	bruto, descuento, neto := decimal.Zero, decimal.Zero, decimal.Zero
	var ops int64
	for _, it := range items {
		ops += it.Operaciones
		bruto = bruto.Add(decimal.NewFromFloat(it.TotalBruto))
		descuento = descuento.Add(decimal.NewFromFloat(it.TotalDescuento))
		neto = neto.Add(decimal.NewFromFloat(it.TotalNeto))
	}

	return &PaymentSummary{
		Date:  date,
		Items: items,
		Aggregate: PaymentAggregate{
			Operaciones:    ops,
			TotalBruto:     bruto.InexactFloat64(),
			TotalDescuento: descuento.InexactFloat64(),
			TotalNeto:      neto.InexactFloat64(),
		},
		MpOrders: mp,
	}, nil
}
