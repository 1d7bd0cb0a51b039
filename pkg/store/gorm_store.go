package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"consultassist/pkg/domain"
)

const migrateLockID int64 = 52895289

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB, runs auto-migrations, and installs the partial
// uniqueness index that arbitrates booked-slot races.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&ServiceModel{},
			&ConsultantModel{},
			&AvailabilityBlockModel{},
			&AppointmentModel{},
			&SessionModel{},
			&TurnModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		// Partial index: only booked rows contend for a consultant's slot, so a
		// cancelled row can be reactivated in place.
		if err := tx.Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_booked_slot
			ON appointment_models (consultant_id, appointment_time)
			WHERE status = 'booked'
		`).Error; err != nil {
			return fmt.Errorf("create booked slot index: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateService inserts a service reference row.
func (s *GormStore) CreateService(svc domain.Service) (int64, error) {
	model := ServiceModel{Name: svc.Name, Description: svc.Description}
	if err := s.db.Create(&model).Error; err != nil {
		return 0, err
	}
	return model.ID, nil
}

// CreateConsultant inserts a consultant reference row.
func (s *GormStore) CreateConsultant(c domain.Consultant) (int64, error) {
	model := ConsultantModel{Name: c.Name, Email: c.Email, ServiceID: c.ServiceID}
	if err := s.db.Create(&model).Error; err != nil {
		return 0, err
	}
	return model.ID, nil
}

// CreateAvailabilityBlock inserts a weekly work block.
func (s *GormStore) CreateAvailabilityBlock(b domain.AvailabilityBlock) (int64, error) {
	model := AvailabilityBlockModel{
		ConsultantID: b.ConsultantID,
		Weekday:      int(b.Weekday),
		StartMinute:  b.StartMinute,
		EndMinute:    b.EndMinute,
	}
	if err := s.db.Create(&model).Error; err != nil {
		return 0, err
	}
	return model.ID, nil
}

// ServiceCount returns the number of seeded services.
func (s *GormStore) ServiceCount() (int, error) {
	var count int64
	if err := s.db.Model(&ServiceModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// GetServiceByID returns a service by ID.
func (s *GormStore) GetServiceByID(id int64) (domain.Service, bool, error) {
	var model ServiceModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Service{}, false, nil
		}
		return domain.Service{}, false, err
	}
	return serviceFromModel(model), true, nil
}

// GetServiceByName looks up a service by its unique name.
func (s *GormStore) GetServiceByName(name string) (domain.Service, bool, error) {
	var model ServiceModel
	if err := s.db.Where("name = ?", name).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Service{}, false, nil
		}
		return domain.Service{}, false, err
	}
	return serviceFromModel(model), true, nil
}

// ListServices returns all services ordered by ID.
func (s *GormStore) ListServices() ([]domain.Service, error) {
	var models []ServiceModel
	if err := s.db.Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Service, 0, len(models))
	for _, m := range models {
		res = append(res, serviceFromModel(m))
	}
	return res, nil
}

// ListConsultantsByService returns consultants for a service ordered by ID,
// which fixes the engine's deterministic tie-break.
func (s *GormStore) ListConsultantsByService(serviceID int64) ([]domain.Consultant, error) {
	var models []ConsultantModel
	if err := s.db.Where("service_id = ?", serviceID).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Consultant, 0, len(models))
	for _, m := range models {
		res = append(res, consultantFromModel(m))
	}
	return res, nil
}

// ListAvailabilityBlocks returns one consultant's work blocks for a weekday.
func (s *GormStore) ListAvailabilityBlocks(consultantID int64, weekday time.Weekday) ([]domain.AvailabilityBlock, error) {
	var models []AvailabilityBlockModel
	if err := s.db.Where("consultant_id = ? AND weekday = ?", consultantID, int(weekday)).
		Order("start_minute ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.AvailabilityBlock, 0, len(models))
	for _, m := range models {
		res = append(res, blockFromModel(m))
	}
	return res, nil
}

// HasBookedAppointmentNear reports whether a booked appointment for the
// consultant starts within +/- the given window around at.
func (s *GormStore) HasBookedAppointmentNear(consultantID int64, at time.Time, within time.Duration) (bool, error) {
	var count int64
	if err := s.db.Model(&AppointmentModel{}).
		Where("consultant_id = ? AND status = ? AND appointment_time BETWEEN ? AND ?",
			consultantID, string(domain.StatusBooked), at.Add(-within), at.Add(within)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetCancelledAppointmentAt finds a cancelled row for the exact slot, if any.
func (s *GormStore) GetCancelledAppointmentAt(consultantID int64, at time.Time) (domain.Appointment, bool, error) {
	var model AppointmentModel
	err := s.db.Where("consultant_id = ? AND appointment_time = ? AND status = ?",
		consultantID, at, string(domain.StatusCancelled)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Appointment{}, false, nil
		}
		return domain.Appointment{}, false, err
	}
	return appointmentFromModel(model), true, nil
}

// CreateAppointment inserts a fresh booked row. A uniqueness violation on the
// booked-slot index surfaces as ErrDuplicateSlot.
func (s *GormStore) CreateAppointment(appt domain.Appointment) (int64, error) {
	model := AppointmentModel{
		UserName:        appt.UserName,
		UserEmail:       appt.UserEmail,
		AppointmentTime: appt.Time,
		ConsultantID:    appt.ConsultantID,
		ServiceID:       appt.ServiceID,
		Status:          string(domain.StatusBooked),
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.db.Create(&model).Error; err != nil {
		return 0, translateSlotError(err)
	}
	return model.ID, nil
}

// ReactivateAppointment flips a cancelled row back to booked, overwriting the
// identity fields. Losing the flip race reports ErrDuplicateSlot.
func (s *GormStore) ReactivateAppointment(id int64, userName, userEmail string, serviceID int64) error {
	res := s.db.Model(&AppointmentModel{}).
		Where("id = ? AND status = ?", id, string(domain.StatusCancelled)).
		Updates(map[string]any{
			"user_name":  userName,
			"user_email": userEmail,
			"service_id": serviceID,
			"status":     string(domain.StatusBooked),
		})
	if res.Error != nil {
		return translateSlotError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateSlot
	}
	return nil
}

// GetActiveAppointment returns the booked row matching id and email.
func (s *GormStore) GetActiveAppointment(id int64, userEmail string) (domain.Appointment, bool, error) {
	var model AppointmentModel
	err := s.db.Where("id = ? AND user_email = ? AND status = ?",
		id, userEmail, string(domain.StatusBooked)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Appointment{}, false, nil
		}
		return domain.Appointment{}, false, err
	}
	return appointmentFromModel(model), true, nil
}

// ReassignAppointmentSlot moves a booked row to a new time and consultant.
func (s *GormStore) ReassignAppointmentSlot(id int64, userEmail string, newTime time.Time, consultantID int64) error {
	res := s.db.Model(&AppointmentModel{}).
		Where("id = ? AND user_email = ? AND status = ?", id, userEmail, string(domain.StatusBooked)).
		Updates(map[string]any{
			"appointment_time": newTime,
			"consultant_id":    consultantID,
		})
	if res.Error != nil {
		return translateSlotError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReassignAppointmentService changes a booked row's service and consultant,
// holding the time fixed.
func (s *GormStore) ReassignAppointmentService(id int64, userEmail string, serviceID, consultantID int64) error {
	res := s.db.Model(&AppointmentModel{}).
		Where("id = ? AND user_email = ? AND status = ?", id, userEmail, string(domain.StatusBooked)).
		Updates(map[string]any{
			"service_id":    serviceID,
			"consultant_id": consultantID,
		})
	if res.Error != nil {
		return translateSlotError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelAppointment flips status to cancelled when id, email, and booked
// status all match; the row is retained.
func (s *GormStore) CancelAppointment(id int64, userEmail string) (bool, error) {
	res := s.db.Model(&AppointmentModel{}).
		Where("id = ? AND user_email = ? AND status = ?", id, userEmail, string(domain.StatusBooked)).
		Update("status", string(domain.StatusCancelled))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type bookingDetailsRow struct {
	AppointmentID   int64
	UserName        string
	UserEmail       string
	AppointmentTime time.Time
	ConsultantName  string
	ConsultantEmail string
	ServiceName     string
	Status          string
}

const bookingDetailsSelect = `
	SELECT a.id AS appointment_id, a.user_name, a.user_email, a.appointment_time,
	       c.name AS consultant_name, c.email AS consultant_email,
	       s.name AS service_name, a.status
	FROM appointment_models a
	JOIN consultant_models c ON a.consultant_id = c.id
	JOIN service_models s ON a.service_id = s.id
`

// GetBookingDetails fetches the joined record for one appointment. Cancelled
// rows are visible only when includeAllStatuses is set.
func (s *GormStore) GetBookingDetails(id int64, includeAllStatuses bool) (domain.BookingDetails, bool, error) {
	query := bookingDetailsSelect + " WHERE a.id = ?"
	args := []any{id}
	if !includeAllStatuses {
		query += " AND a.status = ?"
		args = append(args, string(domain.StatusBooked))
	}
	var rows []bookingDetailsRow
	if err := s.db.Raw(query, args...).Scan(&rows).Error; err != nil {
		return domain.BookingDetails{}, false, err
	}
	if len(rows) == 0 {
		return domain.BookingDetails{}, false, nil
	}
	return detailsFromRow(rows[0]), true, nil
}

// ListUserAppointments returns a user's active bookings ordered by time.
func (s *GormStore) ListUserAppointments(userEmail string) ([]domain.BookingDetails, error) {
	var rows []bookingDetailsRow
	err := s.db.Raw(bookingDetailsSelect+
		" WHERE a.user_email = ? AND a.status = ? ORDER BY a.appointment_time ASC",
		userEmail, string(domain.StatusBooked)).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.BookingDetails, 0, len(rows))
	for _, row := range rows {
		res = append(res, detailsFromRow(row))
	}
	return res, nil
}

// MarkConfirmationSent stamps the confirmation timestamp. Idempotent; a
// missing row is not an error.
func (s *GormStore) MarkConfirmationSent(id int64, at time.Time) error {
	return s.db.Model(&AppointmentModel{}).
		Where("id = ?", id).
		Update("confirmation_sent_at", at.UTC()).Error
}

// EnsureSession creates the session row if absent.
func (s *GormStore) EnsureSession(sessionID string) error {
	now := time.Now().UTC()
	model := SessionModel{ID: sessionID, CreatedAt: now, UpdatedAt: now}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// GetSessionState returns the scratch state for a session.
func (s *GormStore) GetSessionState(sessionID string) (domain.SessionState, bool, error) {
	var model SessionModel
	if err := s.db.First(&model, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SessionState{}, false, nil
		}
		return domain.SessionState{}, false, err
	}
	var state domain.SessionState
	if len(model.State) > 0 {
		_ = json.Unmarshal(model.State, &state)
	}
	return state, true, nil
}

// UpdateSessionState replaces the scratch state blob for a session.
func (s *GormStore) UpdateSessionState(sessionID string, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Model(&SessionModel{}).Where("id = ?", sessionID).Updates(map[string]any{
		"state":      raw,
		"updated_at": time.Now().UTC(),
	}).Error
}

// AppendTurn records one message of a session's history.
func (s *GormStore) AppendTurn(sessionID, role, content string) error {
	model := TurnModel{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	return s.db.Create(&model).Error
}

// ListTurns returns the most recent turns in chronological order.
func (s *GormStore) ListTurns(sessionID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return []domain.Turn{}, nil
	}
	var models []TurnModel
	if err := s.db.Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	turns := make([]domain.Turn, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		turns = append(turns, turnFromModel(models[i]))
	}
	return turns, nil
}

func translateSlotError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateSlot
	}
	return err
}

func serviceFromModel(m ServiceModel) domain.Service {
	return domain.Service{ID: m.ID, Name: m.Name, Description: m.Description}
}

func consultantFromModel(m ConsultantModel) domain.Consultant {
	return domain.Consultant{ID: m.ID, Name: m.Name, Email: m.Email, ServiceID: m.ServiceID}
}

func blockFromModel(m AvailabilityBlockModel) domain.AvailabilityBlock {
	return domain.AvailabilityBlock{
		ID:           m.ID,
		ConsultantID: m.ConsultantID,
		Weekday:      time.Weekday(m.Weekday),
		StartMinute:  m.StartMinute,
		EndMinute:    m.EndMinute,
	}
}

func appointmentFromModel(m AppointmentModel) domain.Appointment {
	return domain.Appointment{
		ID:                 m.ID,
		UserName:           m.UserName,
		UserEmail:          m.UserEmail,
		Time:               m.AppointmentTime,
		ConsultantID:       m.ConsultantID,
		ServiceID:          m.ServiceID,
		Status:             domain.AppointmentStatus(m.Status),
		CreatedAt:          m.CreatedAt,
		ConfirmationSentAt: m.ConfirmationSentAt,
	}
}

func detailsFromRow(row bookingDetailsRow) domain.BookingDetails {
	return domain.BookingDetails{
		AppointmentID:   row.AppointmentID,
		UserName:        row.UserName,
		UserEmail:       row.UserEmail,
		Time:            row.AppointmentTime,
		ConsultantName:  row.ConsultantName,
		ConsultantEmail: row.ConsultantEmail,
		ServiceName:     row.ServiceName,
		Status:          domain.AppointmentStatus(row.Status),
	}
}

func turnFromModel(m TurnModel) domain.Turn {
	return domain.Turn{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
