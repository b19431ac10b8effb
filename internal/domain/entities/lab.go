package entities

// LabBookingStatus represents the state of a lab booking
type LabBookingStatus string

const (
	LabBookingBooked          LabBookingStatus = "booked"
	LabBookingSampleCollected LabBookingStatus = "sample_collected"
	LabBookingReportReady     LabBookingStatus = "report_ready"
	LabBookingCancelled       LabBookingStatus = "cancelled"
)

// LabTest is a test offered by a lab partner
type LabTest struct {
	Base
	Name         string  `json:"name"`
	Category     string  `json:"category,omitempty"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"`
	LabPartnerID string  `json:"lab_partner_id"`
	FastingHours int     `json:"fasting_hours,omitempty"`
}

// LabBooking is a patient's booking of a lab test
type LabBooking struct {
	Base
	LabTestID      string           `json:"lab_test_id"`
	LabTestName    string           `json:"lab_test_name,omitempty"`
	LabPartnerID   string           `json:"lab_partner_id"`
	PatientEmail   string           `json:"patient_email"`
	PatientName    string           `json:"patient_name,omitempty"`
	BookingDate    string           `json:"booking_date"`
	TimeSlot       string           `json:"time_slot,omitempty"`
	HomeCollection bool             `json:"home_collection"`
	Address        string           `json:"address,omitempty"`
	TotalAmount    float64          `json:"total_amount"`
	Status         LabBookingStatus `json:"status"`
	ReportURL      string           `json:"report_url,omitempty"`
}
