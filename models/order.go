package models

// Order is a service order ("OS") row in the legacy os table.
type Order struct {
	ID                 uint     `gorm:"column:idOs;primaryKey;autoIncrement" json:"id"`
	Status             *string  `gorm:"column:status;type:varchar(45)" json:"status"`
	StatusPago         *string  `gorm:"column:statusPago;type:varchar(45)" json:"statusPago"`
	ValorTotal         *float64 `gorm:"column:valorTotal;type:decimal(10,2)" json:"valorTotal"`
	ValorPagado        *float64 `gorm:"column:valorPagado;type:decimal(10,2)" json:"valorPagado"`
	Pendiente          *float64 `gorm:"column:pendiente;type:decimal(10,2)" json:"pendiente"`
	Metros             *float64 `gorm:"column:metros;type:decimal(10,2)" json:"metros"`
	Senia              *string  `gorm:"column:senia;type:varchar(45)" json:"senia"`
	LugaresID          *int64   `gorm:"column:lugares_id" json:"lugares_id"`
	ClientesID         *int64   `gorm:"column:clientes_id;index" json:"clientes_id"`
	UsuariosID         *int64   `gorm:"column:usuarios_id;index" json:"usuarios_id"`
	EsRehacer          int      `gorm:"column:es_rehacer;default:0" json:"es_rehacer"`
	DataInicial        NullDate `gorm:"column:dataInicial;type:date" json:"dataInicial"`
	DataFinal          NullDate `gorm:"column:dataFinal;type:date" json:"dataFinal"`
	Garantia           *string  `gorm:"column:garantia;type:varchar(255)" json:"garantia"`
	Observacoes        *string  `gorm:"column:observacoes;type:text" json:"observacoes"`
	Defeito            *string  `gorm:"column:defeito;type:text" json:"defeito"`
	LaudoTecnico       *string  `gorm:"column:laudoTecnico;type:text" json:"laudoTecnico"`
	PagadoAreaClientes int      `gorm:"column:pagadoAreaClientes;default:0" json:"pagadoAreaClientes"`
	NumeroOperacion    *string  `gorm:"column:numeroOperacion;type:varchar(100)" json:"numeroOperacion"`
}

func (Order) TableName() string { return "os" }

type Cliente struct {
	ID           uint    `gorm:"column:idClientes;primaryKey;autoIncrement"`
	NomeCliente  string  `gorm:"column:nomeCliente;type:varchar(255)"`
	AreasInteres *string `gorm:"column:areas_interes;type:varchar(255)"`
}

func (Cliente) TableName() string { return "clientes" }

// DeliveryPlace maps lugares_entrega.
type DeliveryPlace struct {
	ID    uint   `gorm:"column:idLugar;primaryKey;autoIncrement"`
	Lugar string `gorm:"column:lugar;type:varchar(255)"`
}

func (DeliveryPlace) TableName() string { return "lugares_entrega" }
