package entities

// UrgencyLevel classifies how soon a patient should seek care
type UrgencyLevel string

const (
	UrgencyLow       UrgencyLevel = "low"
	UrgencyMedium    UrgencyLevel = "medium"
	UrgencyHigh      UrgencyLevel = "high"
	UrgencyEmergency UrgencyLevel = "emergency"
)

// Valid reports whether u is a known urgency level
func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency:
		return true
	}
	return false
}

// HealthRecord is a patient-entered or uploaded health document
type HealthRecord struct {
	Base
	RecordType string         `json:"record_type"`
	Title      string         `json:"title,omitempty"`
	RecordDate string         `json:"record_date,omitempty"`
	Values     map[string]any `json:"values,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	FileURL    string         `json:"file_url,omitempty"`
}

// HealthInsight is an AI-generated summary over a user's health records
type HealthInsight struct {
	Base
	UserEmail       string   `json:"user_email"`
	Summary         string   `json:"summary"`
	RiskFactors     []string `json:"risk_factors"`
	Recommendations []string `json:"recommendations"`
	HealthScore     float64  `json:"health_score"`
	RecordCount     int      `json:"record_count"`
}

// PossibleCondition is one candidate explanation for reported symptoms
type PossibleCondition struct {
	Name        string `json:"name"`
	Probability string `json:"probability"`
	Description string `json:"description,omitempty"`
}

// SymptomSession stores one AI symptom check
type SymptomSession struct {
	Base
	UserEmail              string              `json:"user_email"`
	Symptoms               []string            `json:"symptoms"`
	Age                    int                 `json:"age,omitempty"`
	Gender                 string              `json:"gender,omitempty"`
	Duration               string              `json:"duration,omitempty"`
	PossibleConditions     []PossibleCondition `json:"possible_conditions"`
	UrgencyLevel           UrgencyLevel        `json:"urgency_level"`
	RecommendedSpecialties []string            `json:"recommended_specialties"`
	Advice                 string              `json:"advice,omitempty"`
	EmergencyAdvised       bool                `json:"emergency_advised"`
	MatchedDoctorIDs       []string            `json:"matched_doctor_ids,omitempty"`
}

// EmergencyStatus represents the state of an emergency request
type EmergencyStatus string

const (
	EmergencyPending    EmergencyStatus = "pending"
	EmergencyDispatched EmergencyStatus = "dispatched"
	EmergencyResolved   EmergencyStatus = "resolved"
)

// EmergencyRequest is a patient's call for urgent help
type EmergencyRequest struct {
	Base
	RequesterEmail string          `json:"requester_email"`
	EmergencyType  string          `json:"emergency_type"`
	Location       string          `json:"location"`
	ContactPhone   string          `json:"contact_phone,omitempty"`
	Description    string          `json:"description,omitempty"`
	Status         EmergencyStatus `json:"status"`
	HandledBy      string          `json:"handled_by,omitempty"`
}
