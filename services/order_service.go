package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yeremiapane/backoffice/models"
	"github.com/yeremiapane/backoffice/realtime"
	"github.com/yeremiapane/backoffice/utils"
	"gorm.io/gorm"
)

const (
	defaultOrderLimit = 1000
	maxOrderLimit     = 5000
)

// orderFields maps request keys to os columns. Keys outside this list are
// ignored on create and update.
var orderFields = map[string]string{
	"status":              "status",
	"statusPago":          "statusPago",
	"valorTotal":          "valorTotal",
	"valorPagado":         "valorPagado",
	"pendiente":           "pendiente",
	"metros":              "metros",
	"senia":               "senia",
	"lugares_id":          "lugares_id",
	"fechaIngreso":        "dataInicial",
	"fechaEntrega":        "dataFinal",
	"trabajo":             "garantia",
	"descripcionProducto": "observacoes",
	"clase":               "defeito",
	"informacionGeneral":  "laudoTecnico",
	"es_rehacer":          "es_rehacer",
	"esAreaClientes":      "pagadoAreaClientes",
}

var (
	numericOrderKeys = map[string]bool{"valorTotal": true, "valorPagado": true, "pendiente": true, "metros": true}
	flagOrderKeys    = map[string]bool{"es_rehacer": true, "esAreaClientes": true}
	dateOrderKeys    = map[string]bool{"fechaIngreso": true, "fechaEntrega": true}
)

// OrderView is the shape the dashboards consume for a single OS.
type OrderView struct {
	ID                  int64    `json:"id"`
	Status              *string  `json:"status"`
	StatusPago          *string  `json:"statusPago"`
	ValorTotal          float64  `json:"valorTotal"`
	ValorPagado         float64  `json:"valorPagado"`
	Pendiente           float64  `json:"pendiente"`
	Metros              *float64 `json:"metros"`
	Senia               *string  `json:"senia"`
	LugaresID           *int64   `json:"lugares_id"`
	Ts                  *string  `json:"ts"`
	ClienteID           *int64   `json:"cliente_id"`
	ClienteNombre       *string  `json:"cliente_nombre"`
	Area                *string  `json:"area"`
	UsuarioID           *int64   `json:"usuario_id"`
	UsuarioNombre       *string  `json:"usuario_nombre"`
	EsRehacer           int      `json:"es_rehacer"`
	FechaIngreso        *string  `json:"fechaIngreso"`
	FechaEntrega        *string  `json:"fechaEntrega"`
	LugarEntrega        string   `json:"lugarEntrega"`
	Lugar               string   `json:"lugar"`
	Trabajo             *string  `json:"trabajo"`
	DescripcionProducto *string  `json:"descripcionProducto"`
	Clase               *string  `json:"clase"`
	InformacionGeneral  *string  `json:"informacionGeneral"`
	FechaPago           *string  `json:"fechaPago"`
	EsAreaClientes      bool     `json:"esAreaClientes"`
	HayNOP              bool     `json:"hayNOP"`
	ActivityTs          int64    `json:"activityTs"`
}

type orderRow struct {
	ID                  int64           `gorm:"column:id"`
	Status              *string         `gorm:"column:status"`
	StatusPago          *string         `gorm:"column:statusPago"`
	ValorTotal          *float64        `gorm:"column:valorTotal"`
	ValorPagado         *float64        `gorm:"column:valorPagado"`
	Pendiente           *float64        `gorm:"column:pendiente"`
	Metros              *float64        `gorm:"column:metros"`
	Senia               *string         `gorm:"column:senia"`
	LugaresID           *int64          `gorm:"column:lugares_id"`
	Ts                  models.NullDate `gorm:"column:ts"`
	FechaIngreso        models.NullDate `gorm:"column:fechaIngreso"`
	FechaEntrega        models.NullDate `gorm:"column:fechaEntrega"`
	Trabajo             *string         `gorm:"column:trabajo"`
	DescripcionProducto *string         `gorm:"column:descripcionProducto"`
	Clase               *string         `gorm:"column:clase"`
	InformacionGeneral  *string         `gorm:"column:informacionGeneral"`
	EsRehacer           int             `gorm:"column:es_rehacer"`
	PagadoAreaClientes  int             `gorm:"column:pagadoAreaClientes"`
	HayNOP              int             `gorm:"column:hayNOP"`
	ClienteID           *int64          `gorm:"column:cliente_id"`
	ClienteNombre       *string         `gorm:"column:cliente_nombre"`
	Area                *string         `gorm:"column:area"`
	UsuarioID           *int64          `gorm:"column:usuario_id"`
	UsuarioNombre       *string         `gorm:"column:usuario_nombre"`
	LugarEntrega        string          `gorm:"column:lugarEntrega"`
}

const orderSelect = `SELECT
	os.idOs AS id,
	os.status AS status,
	os.statusPago AS statusPago,
	os.valorTotal AS valorTotal,
	os.valorPagado AS valorPagado,
	os.pendiente AS pendiente,
	os.metros AS metros,
	os.senia AS senia,
	os.lugares_id AS lugares_id,
	COALESCE(os.dataFinal, os.dataInicial) AS ts,
	os.dataInicial AS fechaIngreso,
	os.dataFinal AS fechaEntrega,
	os.garantia AS trabajo,
	os.observacoes AS descripcionProducto,
	os.defeito AS clase,
	os.laudoTecnico AS informacionGeneral,
	COALESCE(os.es_rehacer, 0) AS es_rehacer,
	COALESCE(os.pagadoAreaClientes, 0) AS pagadoAreaClientes,
	CASE WHEN os.numeroOperacion IS NOT NULL AND os.numeroOperacion <> '' THEN 1 ELSE 0 END AS hayNOP,
	COALESCE(clientes.idClientes, os.clientes_id) AS cliente_id,
	clientes.nomeCliente AS cliente_nombre,
	clientes.areas_interes AS area,
	COALESCE(usuarios.idUsuarios, os.usuarios_id) AS usuario_id,
	usuarios.nome AS usuario_nombre,
	COALESCE(lugares_entrega.lugar, '') AS lugarEntrega
FROM os
LEFT JOIN clientes ON clientes.idClientes = os.clientes_id
LEFT JOIN usuarios ON usuarios.idUsuarios = os.usuarios_id
LEFT JOIN lugares_entrega ON lugares_entrega.idLugar = os.lugares_id`

func (r orderRow) view() OrderView {
	return OrderView{
		ID:                  r.ID,
		Status:              r.Status,
		StatusPago:          r.StatusPago,
		ValorTotal:          floatOr(r.ValorTotal, 0),
		ValorPagado:         floatOr(r.ValorPagado, 0),
		Pendiente:           floatOr(r.Pendiente, 0),
		Metros:              r.Metros,
		Senia:               r.Senia,
		LugaresID:           r.LugaresID,
		Ts:                  r.Ts.Ptr(),
		ClienteID:           r.ClienteID,
		ClienteNombre:       r.ClienteNombre,
		Area:                r.Area,
		UsuarioID:           r.UsuarioID,
		UsuarioNombre:       r.UsuarioNombre,
		EsRehacer:           r.EsRehacer,
		FechaIngreso:        r.FechaIngreso.Ptr(),
		FechaEntrega:        r.FechaEntrega.Ptr(),
		LugarEntrega:        r.LugarEntrega,
		Lugar:               r.LugarEntrega,
		Trabajo:             r.Trabajo,
		DescripcionProducto: r.DescripcionProducto,
		Clase:               r.Clase,
		InformacionGeneral:  r.InformacionGeneral,
		EsAreaClientes:      r.PagadoAreaClientes == 1,
		HayNOP:              r.HayNOP == 1,
		ActivityTs:          time.Now().UnixMilli(),
	}
}

func floatOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// OrderFilter narrows List. Dates are YYYY-MM-DD and apply to dataInicial.
type OrderFilter struct {
	StartDate string
	EndDate   string
	Limit     int
}

type OrderService struct {
	DB     *gorm.DB
	Events Publisher
}

func NewOrderService(db *gorm.DB, events Publisher) *OrderService {
	return &OrderService{DB: db, Events: events}
}

// List returns orders newest first.
func (s *OrderService) List(ctx context.Context, f OrderFilter) ([]OrderView, error) {
	var where []string
	var args []interface{}
	if f.StartDate != "" {
		where = append(where, "os.dataInicial >= ?")
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		where = append(where, "os.dataInicial <= ?")
		args = append(args, f.EndDate+" 23:59:59")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultOrderLimit
	}
	if limit > maxOrderLimit {
		limit = maxOrderLimit
	}

	query := orderSelect
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY os.idOs DESC\nLIMIT ?"
	args = append(args, limit)

	var rows []orderRow
	if err := s.DB.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	out := make([]OrderView, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.view())
	}
	return out, nil
}

func (s *OrderService) Get(ctx context.Context, id int64) (*OrderView, error) {
	var rows []orderRow
	err := s.DB.WithContext(ctx).
		Raw(orderSelect+"\nWHERE os.idOs = ?\nLIMIT 1", id).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, ErrOrderNotFound
	}
	v := rows[0].view()
	return &v, nil
}

// Create inserts an order with the usual defaults and publishes os:new.
func (s *OrderService) Create(ctx context.Context, body map[string]interface{}) (*OrderView, error) {
	input := map[string]interface{}{
		"status":       "Presupuesto",
		"statusPago":   "Pendiente",
		"valorTotal":   0.0,
		"valorPagado":  0.0,
		"fechaIngreso": utils.Today(),
	}
	total, _ := utils.ToFloat(body["valorTotal"])
	paid, _ := utils.ToFloat(body["valorPagado"])
	input["pendiente"] = total - paid
	for k, v := range body {
		input[k] = v
	}

	values, err := normalizeOrderInput(input, nil)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrEmptyOrder
	}

	order := &models.Order{}
	for column, v := range values {
		setOrderColumn(order, column, v)
	}
	if err := s.DB.WithContext(ctx).Create(order).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	view, err := s.Get(ctx, int64(order.ID))
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.Printf("[orders] created order %d", view.ID)
	publish(ctx, s.Events, realtime.EventOrderNew, realtime.ChannelOrders, nil, view)
	return view, nil
}

// Update writes the allowed subset of body. An unknown id returns
// ErrOrderNotFound without touching the table.
func (s *OrderService) Update(ctx context.Context, id int64, body map[string]interface{}) (*OrderView, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	values, err := normalizeOrderInput(body, existing)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return existing, nil
	}

	if err := s.DB.WithContext(ctx).Model(&models.Order{}).Where("idOs = ?", id).Updates(values).Error; err != nil {
		return nil, fmt.Errorf("update order %d: %w", id, err)
	}

	view, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.Printf("[orders] updated order %d (%d fields)", id, len(values))
	publish(ctx, s.Events, realtime.EventOrderUpdate, realtime.ChannelOrders, nil, view)
	return view, nil
}

// Enrich expands an os event into the current order view. Events written by
// the database triggers only carry the id.
func (s *OrderService) Enrich(ctx context.Context, ev realtime.Event) json.RawMessage {
	if ev.Channel != realtime.ChannelOrders {
		return nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return nil
	}
	id := payloadOrderID(payload)
	if id == 0 {
		return nil
	}

	view, err := s.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			utils.ErrorLogger.Errorf("[SSE] error enriching order %d: %v", id, err)
		}
		return nil
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return nil
	}
	return raw
}

func payloadOrderID(payload map[string]interface{}) int64 {
	for _, key := range []string{"id", "idOs", "order_id"} {
		if f, ok := utils.ToFloat(payload[key]); ok && f > 0 {
			return int64(f)
		}
	}
	if nested, ok := payload["payload"].(map[string]interface{}); ok {
		return payloadOrderID(nested)
	}
	return 0
}

// normalizeOrderInput maps the allowed keys of body to column values.
// Invalid numbers fall back to the previous value, or 0 on create.
func normalizeOrderInput(body map[string]interface{}, prev *OrderView) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	for key, column := range orderFields {
		raw, present := body[key]
		if !present {
			continue
		}
		if s, ok := raw.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				raw = nil
			} else {
				raw = s
			}
		}

		switch {
		case flagOrderKeys[key]:
			out[column] = utils.ToFlag(raw)
		case numericOrderKeys[key]:
			if raw == nil {
				out[column] = nil
				continue
			}
			if f, ok := utils.ToFloat(raw); ok {
				out[column] = f
			} else {
				out[column] = previousNumber(prev, key)
			}
		case key == "lugares_id":
			out[column] = nil
			if raw != nil {
				if f, ok := utils.ToFloat(raw); ok && f > 0 {
					out[column] = int64(f)
				}
			}
		case dateOrderKeys[key]:
			if raw == nil {
				out[column] = nil
				continue
			}
			date := fmt.Sprint(raw)
			if len(date) > 10 {
				date = date[:10]
			}
			if _, err := time.Parse(utils.DateLayout, date); err != nil {
				return nil, &ValidationError{Message: fmt.Sprintf("%s: %s", key, utils.ErrInvalidDate)}
			}
			out[column] = date
		default:
			if raw == nil {
				out[column] = nil
			} else {
				out[column] = fmt.Sprint(raw)
			}
		}
	}
	return out, nil
}

func previousNumber(prev *OrderView, key string) float64 {
	if prev == nil {
		return 0
	}
	switch key {
	case "valorTotal":
		return prev.ValorTotal
	case "valorPagado":
		return prev.ValorPagado
	case "pendiente":
		return prev.Pendiente
	case "metros":
		return floatOr(prev.Metros, 0)
	}
	return 0
}

func setOrderColumn(o *models.Order, column string, v interface{}) {
	str := func() *string {
		if s, ok := v.(string); ok {
			return &s
		}
		return nil
	}
	num := func() *float64 {
		if f, ok := v.(float64); ok {
			return &f
		}
		return nil
	}

	switch column {
	case "status":
		o.Status = str()
	case "statusPago":
		o.StatusPago = str()
	case "valorTotal":
		o.ValorTotal = num()
	case "valorPagado":
		o.ValorPagado = num()
	case "pendiente":
		o.Pendiente = num()
	case "metros":
		o.Metros = num()
	case "senia":
		o.Senia = str()
	case "lugares_id":
		if id, ok := v.(int64); ok {
			o.LugaresID = &id
		}
	case "dataInicial":
		o.DataInicial = models.DatePtr(str())
	case "dataFinal":
		o.DataFinal = models.DatePtr(str())
	case "garantia":
		o.Garantia = str()
	case "observacoes":
		o.Observacoes = str()
	case "defeito":
		o.Defeito = str()
	case "laudoTecnico":
		o.LaudoTecnico = str()
	case "es_rehacer":
		o.EsRehacer, _ = v.(int)
	case "pagadoAreaClientes":
		o.PagadoAreaClientes, _ = v.(int)
	}
}
