package entities

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// ConsultationType is how the consultation takes place
type ConsultationType string

const (
	ConsultationInPerson ConsultationType = "in_person"
	ConsultationVideo    ConsultationType = "video"
)

// Appointment is a patient's booking with a doctor
type Appointment struct {
	Base
	DoctorID         string            `json:"doctor_id"`
	DoctorName       string            `json:"doctor_name,omitempty"`
	DoctorEmail      string            `json:"doctor_email,omitempty"`
	PatientEmail     string            `json:"patient_email"`
	PatientName      string            `json:"patient_name,omitempty"`
	PatientPhone     string            `json:"patient_phone,omitempty"`
	ScheduledAt      time.Time         `json:"scheduled_at"`
	ConsultationType ConsultationType  `json:"consultation_type,omitempty"`
	Reason           string            `json:"reason,omitempty"`
	Status           AppointmentStatus `json:"status"`
	Fee              float64           `json:"fee"`
	CancelReason     string            `json:"cancel_reason,omitempty"`
	ReminderSent     bool              `json:"reminder_sent"`
	VideoRoomURL     string            `json:"video_room_url,omitempty"`
}

// Active reports whether the appointment still occupies the doctor's slot
func (a *Appointment) Active() bool {
	return a.Status == AppointmentStatusPending || a.Status == AppointmentStatusConfirmed
}

// VideoConsultation is the video room attached to a video appointment
type VideoConsultation struct {
	Base
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	PatientEmail  string    `json:"patient_email"`
	RoomURL       string    `json:"room_url"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Status        string    `json:"status"`
}
