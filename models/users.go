package models

type User struct {
	ID            uint    `gorm:"column:idUsuarios;primaryKey;autoIncrement" json:"id"`
	Nome          string  `gorm:"column:nome;type:varchar(255)" json:"nome"`
	Email         string  `gorm:"column:email;type:varchar(255);index" json:"email"`
	Senha         string  `gorm:"column:senha;type:varchar(255)" json:"-"`
	Foto          *string `gorm:"column:foto;type:varchar(255)" json:"foto"`
	IDAsistencias *int64  `gorm:"column:idAsistencias" json:"idAsistencias"`
}

func (User) TableName() string { return "usuarios" }

// Attendance is one clock-in row; IDUsuario matches usuarios.idAsistencias.
type Attendance struct {
	ID          uint    `gorm:"column:id;primaryKey;autoIncrement"`
	IDUsuario   int64   `gorm:"column:idUsuario;index"`
	Fecha       string  `gorm:"column:fecha;type:datetime"`
	HoraEntrada *string `gorm:"column:horaEntrada;type:varchar(20)"`
	HoraSalida  *string `gorm:"column:horaSalida;type:varchar(20)"`
}

func (Attendance) TableName() string { return "asistencias" }
