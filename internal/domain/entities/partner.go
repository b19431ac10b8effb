package entities

// VerificationStatus tracks a partner's onboarding review
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// PartnerKind is the type of partner applying to the platform
type PartnerKind string

const (
	PartnerDoctor   PartnerKind = "doctor"
	PartnerLab      PartnerKind = "lab"
	PartnerHospital PartnerKind = "hospital"
)

// Entity returns the entity a partner application is stored as
func (k PartnerKind) Entity() (string, bool) {
	switch k {
	case PartnerDoctor:
		return EntityDoctor, true
	case PartnerLab:
		return EntityLabPartner, true
	case PartnerHospital:
		return EntityHospital, true
	}
	return "", false
}

// Role returns the user role granted once the partner is verified
func (k PartnerKind) Role() Role {
	switch k {
	case PartnerDoctor:
		return RoleDoctor
	case PartnerLab:
		return RoleLab
	case PartnerHospital:
		return RoleHospital
	}
	return RoleUser
}

// Doctor is a bookable practitioner
type Doctor struct {
	Base
	FullName           string             `json:"full_name"`
	Specialization     string             `json:"specialization"`
	UserEmail          string             `json:"user_email,omitempty"`
	HospitalID         string             `json:"hospital_id,omitempty"`
	HospitalName       string             `json:"hospital_name,omitempty"`
	City               string             `json:"city,omitempty"`
	ExperienceYears    int                `json:"experience_years,omitempty"`
	ConsultationFee    float64            `json:"consultation_fee"`
	Rating             float64            `json:"rating,omitempty"`
	Available          bool               `json:"available"`
	VideoConsultation  bool               `json:"video_consultation"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// Bookable reports whether patients can book the doctor
func (d *Doctor) Bookable() bool {
	return d.Available && d.VerificationStatus == VerificationVerified
}

// LabPartner is a diagnostic lab offering tests
type LabPartner struct {
	Base
	Name               string             `json:"name"`
	City               string             `json:"city"`
	UserEmail          string             `json:"user_email,omitempty"`
	HomeCollection     bool               `json:"home_collection"`
	HomeCollectionFee  float64            `json:"home_collection_fee"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// Hospital is a facility partner
type Hospital struct {
	Base
	Name               string             `json:"name"`
	City               string             `json:"city"`
	UserEmail          string             `json:"user_email,omitempty"`
	EmergencyServices  bool               `json:"emergency_services"`
	Specialties        []string           `json:"specialties,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}
