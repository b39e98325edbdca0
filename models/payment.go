package models

// Payment is a row of pagos. CargadoDesde tells where the payment was
// loaded from: MP, Adelanto, Área Clientes or Efectivo.
type Payment struct {
	ID              uint     `gorm:"column:idPago;primaryKey;autoIncrement"`
	Fecha           NullDate `gorm:"column:fecha;type:date;index"`
	PagoTotal       float64  `gorm:"column:pagoTotal;type:decimal(10,2);default:0"`
	DescuentoMP     float64  `gorm:"column:descuentoMP;type:decimal(10,2);default:0"`
	NetoRecibido    float64  `gorm:"column:netoRecibido;type:decimal(10,2);default:0"`
	CargadoDesde    string   `gorm:"column:cargadoDesde;type:varchar(45)"`
	NumeroOperacion *string  `gorm:"column:numeroOperacion;type:varchar(100)"`
}

func (Payment) TableName() string { return "pagos" }

type OrderPayment struct {
	OrderID   uint `gorm:"column:os_id;primaryKey;autoIncrement:false"`
	PaymentID uint `gorm:"column:pagos_id;primaryKey;autoIncrement:false"`
}

func (OrderPayment) TableName() string { return "os_pagos" }

// Lancamento is a ledger movement. Valor is stored as text and may use a
// comma as decimal separator.
type Lancamento struct {
	ID            uint     `gorm:"column:id;primaryKey;autoIncrement"`
	Tipo          string   `gorm:"column:tipo;type:varchar(20)"`
	Valor         string   `gorm:"column:valor;type:varchar(45)"`
	FormaPgto     string   `gorm:"column:forma_pgto;type:varchar(45)"`
	DataPagamento NullDate `gorm:"column:data_pagamento;type:date;index"`
	Descricao     *string  `gorm:"column:descricao;type:varchar(255)"`
}

func (Lancamento) TableName() string { return "lancamentos" }
