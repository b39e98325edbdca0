package services

import (
	"context"
	"fmt"

	"github.com/yeremiapane/backoffice/models"
	"gorm.io/gorm"
)

const (
	estadoPresente = "Presente"
	estadoAusente  = "Ausente"
)

type AttendanceEntry struct {
	ID            uint    `json:"id"`
	Nombre        string  `json:"nombre"`
	Email         string  `json:"email"`
	IDAsistencias int64   `json:"idAsistencias"`
	Estado        string  `json:"estado"`
	Presente      bool    `json:"presente"`
	HoraEntrada   *string `json:"horaEntrada"`
	HoraSalida    *string `json:"horaSalida"`
}

type AttendanceReport struct {
	Date          string            `json:"date"`
	TotalUsuarios int               `json:"totalUsuarios"`
	Presentes     int               `json:"presentes"`
	Ausentes      int               `json:"ausentes"`
	SinRegistro   int               `json:"sinRegistro"`
	Usuarios      []AttendanceEntry `json:"usuarios"`
}

type AttendanceService struct {
	DB *gorm.DB
}

func NewAttendanceService(db *gorm.DB) *AttendanceService {
	return &AttendanceService{DB: db}
}

// Daily lists the users enrolled in the clock system with their record for
// date. asistencias.idUsuario refers to usuarios.idAsistencias.
func (s *AttendanceService) Daily(ctx context.Context, date string) (*AttendanceReport, error) {
	db := s.DB.WithContext(ctx)
	report := &AttendanceReport{Date: date, Usuarios: []AttendanceEntry{}}

	var users []models.User
	err := db.Select("idUsuarios", "nome", "email", "idAsistencias").
		Where("idAsistencias IS NOT NULL AND idAsistencias <> 0").
		Order("nome").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("attendance users: %w", err)
	}
	if len(users) == 0 {
		return report, nil
	}

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, *u.IDAsistencias)
	}

	var records []models.Attendance
	err = db.Select("idUsuario", "horaEntrada", "horaSalida").
		Where("idUsuario IN ? AND DATE(fecha) = ?", ids, date).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("attendance records: %w", err)
	}

	byClock := make(map[int64]models.Attendance, len(records))
	for _, r := range records {
		byClock[r.IDUsuario] = r
	}

	for _, u := range users {
		entry := AttendanceEntry{
			ID:            u.ID,
			Nombre:        u.Nome,
			Email:         u.Email,
			IDAsistencias: *u.IDAsistencias,
			Estado:        estadoAusente,
		}
		if r, ok := byClock[*u.IDAsistencias]; ok {
			entry.Estado = estadoPresente
			entry.Presente = true
			entry.HoraEntrada = r.HoraEntrada
			entry.HoraSalida = r.HoraSalida
			report.Presentes++
		} else {
			report.Ausentes++
		}
		report.Usuarios = append(report.Usuarios, entry)
	}
	report.TotalUsuarios = len(report.Usuarios)
	return report, nil
}
