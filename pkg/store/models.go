package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type ServiceModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
}

type ConsultantModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null"`
	Email     string `gorm:"uniqueIndex;not null"`
	ServiceID int64  `gorm:"not null;index"`
}

type AvailabilityBlockModel struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	ConsultantID int64 `gorm:"not null;index:idx_block_consultant_weekday"`
	Weekday      int   `gorm:"not null;index:idx_block_consultant_weekday"`
	StartMinute  int   `gorm:"not null"`
	EndMinute    int   `gorm:"not null"`
}

type AppointmentModel struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement"`
	UserName           string    `gorm:"not null"`
	UserEmail          string    `gorm:"not null;index"`
	AppointmentTime    time.Time `gorm:"not null;index"`
	ConsultantID       int64     `gorm:"not null;index"`
	ServiceID          int64     `gorm:"not null"`
	Status             string    `gorm:"not null;default:booked"`
	CreatedAt          time.Time `gorm:"not null"`
	ConfirmationSentAt *time.Time
}

type SessionModel struct {
	ID        string         `gorm:"primaryKey"`
	State     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

type TurnModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"not null;index"`
	Role      string    `gorm:"not null"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}
