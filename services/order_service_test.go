package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/backoffice/models"
	"github.com/yeremiapane/backoffice/realtime"
	"github.com/yeremiapane/backoffice/utils"
)

func newOrderService(t *testing.T) (*OrderService, *fakePublisher) {
	t.Helper()
	db := setupTestDB(t)
	pub := &fakePublisher{}
	return NewOrderService(db, pub), pub
}

func TestOrderCreateAppliesDefaultsAndCoercion(t *testing.T) {
	svc, pub := newOrderService(t)
	ctx := context.Background()

	require.NoError(t, svc.DB.Create(&models.DeliveryPlace{Lugar: "Local Centro"}).Error)

	order, err := svc.Create(ctx, map[string]interface{}{
		"valorTotal":  "1500",
		"valorPagado": 500.0,
		"trabajo":     "  Vinilo  ",
		"clase":       "   ",
		"es_rehacer":  "si",
		"lugares_id":  1.0,
		"idOs":        99.0,
		"unknown":     "ignored",
	})
	require.NoError(t, err)

	assert.NotZero(t, order.ID)
	assert.NotEqual(t, int64(99), order.ID)
	require.NotNil(t, order.Status)
	assert.Equal(t, "Presupuesto", *order.Status)
	require.NotNil(t, order.StatusPago)
	assert.Equal(t, "Pendiente", *order.StatusPago)
	assert.Equal(t, 1500.0, order.ValorTotal)
	assert.Equal(t, 500.0, order.ValorPagado)
	assert.Equal(t, 1000.0, order.Pendiente)
	require.NotNil(t, order.Trabajo)
	assert.Equal(t, "Vinilo", *order.Trabajo)
	assert.Nil(t, order.Clase)
	assert.Equal(t, 1, order.EsRehacer)
	assert.Equal(t, "Local Centro", order.LugarEntrega)
	assert.Equal(t, order.LugarEntrega, order.Lugar)
	require.NotNil(t, order.FechaIngreso)
	assert.Equal(t, utils.Today(), *order.FechaIngreso)
	assert.False(t, order.HayNOP)

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventOrderNew, events[0].Type)
	assert.Equal(t, realtime.ChannelOrders, events[0].Channel)
}

func TestOrderCreateRejectsBadDate(t *testing.T) {
	svc, pub := newOrderService(t)

	_, err := svc.Create(context.Background(), map[string]interface{}{"fechaEntrega": "15/01/2025"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "fechaEntrega")
	assert.Empty(t, pub.Events())
}

func TestOrderUpdateUnknownIDWritesNothing(t *testing.T) {
	svc, pub := newOrderService(t)

	_, err := svc.Update(context.Background(), 42, map[string]interface{}{"status": "Entregado"})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	var count int64
	require.NoError(t, svc.DB.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, pub.Events())
}

func TestOrderUpdateNormalizesFields(t *testing.T) {
	svc, pub := newOrderService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]interface{}{
		"valorTotal":   100.0,
		"metros":       12.5,
		"status":       "En produccion",
		"fechaIngreso": "2025-01-10",
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, map[string]interface{}{
		"valorTotal":     "not a number",
		"valorPagado":    "40,5",
		"metros":         nil,
		"status":         "  ",
		"esAreaClientes": true,
		"fechaEntrega":   "2025-02-01",
	})
	require.NoError(t, err)

	assert.Equal(t, 100.0, updated.ValorTotal)
	assert.Equal(t, 40.5, updated.ValorPagado)
	assert.Nil(t, updated.Metros)
	assert.Nil(t, updated.Status)
	assert.True(t, updated.EsAreaClientes)
	require.NotNil(t, updated.FechaEntrega)
	assert.Equal(t, "2025-02-01", *updated.FechaEntrega)
	require.NotNil(t, updated.Ts)
	assert.Equal(t, "2025-02-01", *updated.Ts)
	require.NotNil(t, updated.FechaIngreso)
	assert.Equal(t, "2025-01-10", *updated.FechaIngreso)

	events := pub.Events()
	require.Len(t, events, 2)
	assert.Equal(t, realtime.EventOrderUpdate, events[1].Type)
}

func TestOrderUpdateWithoutAllowedFieldsReturnsExisting(t *testing.T) {
	svc, pub := newOrderService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]interface{}{"status": "Presupuesto"})
	require.NoError(t, err)

	same, err := svc.Update(ctx, created.ID, map[string]interface{}{"foo": "bar"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, same.ID)
	assert.Len(t, pub.Events(), 1)
}

func TestOrderListOrderAndFilters(t *testing.T) {
	svc, _ := newOrderService(t)
	ctx := context.Background()

	for _, d := range []string{"2025-01-10", "2025-01-15", "2025-01-20"} {
		_, err := svc.Create(ctx, map[string]interface{}{"fechaIngreso": d})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Greater(t, all[0].ID, all[1].ID)
	assert.Greater(t, all[1].ID, all[2].ID)

	filtered, err := svc.List(ctx, OrderFilter{StartDate: "2025-01-12", EndDate: "2025-01-15"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "2025-01-15", *filtered[0].FechaIngreso)

	limited, err := svc.List(ctx, OrderFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestOrderViewJoinsClientAndUser(t *testing.T) {
	svc, _ := newOrderService(t)
	ctx := context.Background()

	cliente := models.Cliente{NomeCliente: "Grafica Sur", AreasInteres: strPtr("Carteleria")}
	require.NoError(t, svc.DB.Create(&cliente).Error)
	user := createUser(t, svc.DB, models.User{Nome: "Ana", Email: "ana@example.com"})

	order := models.Order{
		ClientesID:      int64Ptr(int64(cliente.ID)),
		UsuariosID:      int64Ptr(int64(user.ID)),
		NumeroOperacion: strPtr("OP-991"),
		Metros:          floatPtr(3.25),
	}
	require.NoError(t, svc.DB.Create(&order).Error)

	view, err := svc.Get(ctx, int64(order.ID))
	require.NoError(t, err)
	assert.Equal(t, "Grafica Sur", *view.ClienteNombre)
	assert.Equal(t, "Carteleria", *view.Area)
	assert.Equal(t, "Ana", *view.UsuarioNombre)
	assert.Equal(t, int64(user.ID), *view.UsuarioID)
	assert.True(t, view.HayNOP)
	assert.Equal(t, 3.25, *view.Metros)
	assert.Equal(t, 0.0, view.ValorTotal)
	assert.Equal(t, "", view.LugarEntrega)

	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderEnrich(t *testing.T) {
	svc, _ := newOrderService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]interface{}{"status": "Terminado"})
	require.NoError(t, err)

	raw := svc.Enrich(ctx, realtime.Event{
		Channel: realtime.ChannelOrders,
		Payload: json.RawMessage(`{"idOs":` + jsonInt(created.ID) + `}`),
	})
	require.NotNil(t, raw)
	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.Equal(t, "Terminado", view["status"])
	assert.Equal(t, float64(created.ID), view["id"])

	assert.Nil(t, svc.Enrich(ctx, realtime.Event{Channel: realtime.ChannelChat, Payload: json.RawMessage(`{"id":1}`)}))
	assert.Nil(t, svc.Enrich(ctx, realtime.Event{Channel: realtime.ChannelOrders, Payload: json.RawMessage(`{"id":404}`)}))
	assert.Nil(t, svc.Enrich(ctx, realtime.Event{Channel: realtime.ChannelOrders, Payload: json.RawMessage(`{}`)}))
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
