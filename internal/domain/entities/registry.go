package entities

import (
	"fmt"
	"sort"
	"strings"
)

// Scope controls who may read and write records of an entity
type Scope string

const (
	// ScopePublic records are readable by any signed-in user; writes are owner/admin only
	ScopePublic Scope = "public"
	// ScopeOwner records are visible only to their creator (and admins)
	ScopeOwner Scope = "owner"
	// ScopeSystem records are written by workflows or admins; reads follow ReadScope
	ScopeSystem Scope = "system"
)

// Entity names
const (
	EntityAppointment       = "Appointment"
	EntityArticle           = "Article"
	EntityDoctor            = "Doctor"
	EntityDoctorProfile     = "DoctorProfile"
	EntityEmergencyRequest  = "EmergencyRequest"
	EntityForumPost         = "ForumPost"
	EntityForumReply        = "ForumReply"
	EntityHealthInsight     = "HealthInsight"
	EntityHealthRecord      = "HealthRecord"
	EntityHospital          = "Hospital"
	EntityLabBooking        = "LabBooking"
	EntityLabPartner        = "LabPartner"
	EntityLabTest           = "LabTest"
	EntityMedicine          = "Medicine"
	EntityMedicineOrder     = "MedicineOrder"
	EntityNotification      = "Notification"
	EntityPrescription      = "Prescription"
	EntityReview            = "Review"
	EntitySymptomSession    = "SymptomSession"
	EntityUserProfile       = "UserProfile"
	EntityVideoConsultation = "VideoConsultation"
)

// Definition describes how the platform treats one entity
type Definition struct {
	Name     string
	Required []string
	Scope    Scope
	// ReadScope overrides Scope for reads of system entities
	ReadScope Scope
	// OwnerField names the data field holding the owning user's email when it
	// differs from created_by (records created by workflows on a user's behalf)
	OwnerField string
	// OwnerUpdatable lists the fields an owner may change on a system entity
	OwnerUpdatable []string
	// AdminFields may only be written by admins and workflows
	AdminFields []string
	Searchable  []string
	Cacheable   bool
	// Parent binds records to a partner record; non-admins may only attach
	// records to parents they own
	Parent *ParentRef
}

// ParentRef names the data field referencing a parent record and the parent
// field holding its owner's email
type ParentRef struct {
	Field      string
	Entity     string
	OwnerField string
}

var registry = map[string]Definition{
	EntityAppointment: {
		Name:       EntityAppointment,
		Required:   []string{"doctor_id", "scheduled_at"},
		Scope:      ScopeSystem,
		ReadScope:  ScopeOwner,
		OwnerField: "patient_email",
	},
	EntityArticle: {
		Name:       EntityArticle,
		Required:   []string{"title", "content"},
		Scope:      ScopePublic,
		Searchable: []string{"title", "content", "category", "tags"},
		Cacheable:  true,
	},
	EntityDoctor: {
		Name:        EntityDoctor,
		Required:    []string{"full_name", "specialization"},
		Scope:       ScopePublic,
		Searchable:  []string{"full_name", "specialization", "hospital_name", "city"},
		Cacheable:   true,
		AdminFields: []string{"verification_status"},
	},
	EntityDoctorProfile: {
		Name:     EntityDoctorProfile,
		Required: []string{"full_name", "specialization", "license_number"},
		Scope:    ScopeOwner,
	},
	EntityEmergencyRequest: {
		Name:       EntityEmergencyRequest,
		Required:   []string{"emergency_type", "location"},
		Scope:      ScopeSystem,
		ReadScope:  ScopeOwner,
		OwnerField: "requester_email",
	},
	EntityForumPost: {
		Name:       EntityForumPost,
		Required:   []string{"title", "content"},
		Scope:      ScopePublic,
		Searchable: []string{"title", "content", "category"},
	},
	EntityForumReply: {
		Name:     EntityForumReply,
		Required: []string{"post_id", "content"},
		Scope:    ScopePublic,
	},
	EntityHealthInsight: {
		Name:       EntityHealthInsight,
		Required:   []string{"summary"},
		Scope:      ScopeSystem,
		ReadScope:  ScopeOwner,
		OwnerField: "user_email",
	},
	EntityHealthRecord: {
		Name:     EntityHealthRecord,
		Required: []string{"record_type"},
		Scope:    ScopeOwner,
	},
	EntityHospital: {
		Name:        EntityHospital,
		Required:    []string{"name", "city"},
		Scope:       ScopePublic,
		Searchable:  []string{"name", "city", "specialties"},
		Cacheable:   true,
		AdminFields: []string{"verification_status"},
	},
	EntityLabBooking: {
		Name:       EntityLabBooking,
		Required:   []string{"lab_test_id", "booking_date"},
		Scope:      ScopeSystem,
		ReadScope:  ScopeOwner,
		OwnerField: "patient_email",
	},
	EntityLabPartner: {
		Name:        EntityLabPartner,
		Required:    []string{"name", "city"},
		Scope:       ScopePublic,
		Searchable:  []string{"name", "city"},
		Cacheable:   true,
		AdminFields: []string{"verification_status"},
	},
	EntityLabTest: {
		Name:       EntityLabTest,
		Required:   []string{"name", "price"},
		Scope:      ScopePublic,
		Searchable: []string{"name", "category", "description"},
		Cacheable:  true,
		Parent:     &ParentRef{Field: "lab_partner_id", Entity: EntityLabPartner, OwnerField: "user_email"},
	},
	EntityMedicine: {
		Name:       EntityMedicine,
		Required:   []string{"name", "price"},
		Scope:      ScopeSystem,
		ReadScope:  ScopePublic,
		Searchable: []string{"name", "generic_name", "category", "manufacturer"},
		Cacheable:  true,
	},
	EntityMedicineOrder: {
		Name:       EntityMedicineOrder,
		Required:   []string{"items", "delivery_address"},
		Scope:      ScopeSystem,
		ReadScope:  ScopeOwner,
		OwnerField: "patient_email",
	},
	EntityNotification: {
		Name:           EntityNotification,
		Required:       []string{"user_email", "title"},
		Scope:          ScopeSystem,
		ReadScope:      ScopeOwner,
		OwnerField:     "user_email",
		OwnerUpdatable: []string{"is_read"},
	},
	EntityPrescription: {
		Name:     EntityPrescription,
		Required: []string{"medications"},
		Scope:    ScopeOwner,
	},
	EntityReview: {
		Name:     EntityReview,
		Required: []string{"target_id", "rating"},
		Scope:    ScopePublic,
	},
	EntitySymptomSession: {
		Name:       EntitySymptomSession,
		Required:   []string{"symptoms"},
		Scope:      ScopeSystem,
		ReadScope:  ScopeOwner,
		OwnerField: "user_email",
	},
	EntityUserProfile: {
		Name:  EntityUserProfile,
		Scope: ScopeOwner,
	},
	EntityVideoConsultation: {
		Name:       EntityVideoConsultation,
		Required:   []string{"appointment_id", "room_url"},
		Scope:      ScopeSystem,
		ReadScope:  ScopeOwner,
		OwnerField: "patient_email",
	},
}

// Lookup returns the definition for an entity name
func Lookup(name string) (Definition, bool) {
	def, ok := registry[name]
	return def, ok
}

// Names returns all registered entity names, sorted
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every required field is present and non-empty
func (d Definition) Validate(data map[string]any) error {
	var missing []string
	for _, field := range d.Required {
		if isEmpty(data[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s is missing required fields: %s", d.Name, strings.Join(missing, ", "))
	}
	return nil
}

// ParentID returns the parent record ID carried in data and whether the
// parent field is present at all
func (d Definition) ParentID(data map[string]any) (string, bool) {
	if d.Parent == nil {
		return "", false
	}
	v, ok := data[d.Parent.Field]
	if !ok {
		return "", false
	}
	id, _ := v.(string)
	return strings.TrimSpace(id), true
}

// OwnerMayUpdate reports whether an owner may apply partial to a record of
// this entity without admin rights
func (d Definition) OwnerMayUpdate(partial map[string]any) bool {
	if d.Scope != ScopeSystem {
		return true
	}
	if len(partial) == 0 || len(d.OwnerUpdatable) == 0 {
		return false
	}
	for field := range partial {
		if IsReservedKey(field) {
			continue
		}
		allowed := false
		for _, f := range d.OwnerUpdatable {
			if f == field {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}

// AdminFieldsIn returns the admin-only fields present in data
func (d Definition) AdminFieldsIn(data map[string]any) []string {
	var found []string
	for _, field := range d.AdminFields {
		if _, ok := data[field]; ok {
			found = append(found, field)
		}
	}
	return found
}

// EffectiveReadScope returns the scope that applies to reads
func (d Definition) EffectiveReadScope() Scope {
	if d.Scope == ScopeSystem && d.ReadScope != "" {
		return d.ReadScope
	}
	return d.Scope
}

// Owner returns the email of the user owning rec
func (d Definition) Owner(rec *Record) string {
	if d.OwnerField != "" {
		if owner := rec.String(d.OwnerField); owner != "" {
			return owner
		}
	}
	return rec.CreatedBy
}

// SearchText extracts the title, body and tags to index for rec
func (d Definition) SearchText(rec *Record) (title, body string, tags []string) {
	var parts []string
	for i, field := range d.Searchable {
		switch v := rec.Data[field].(type) {
		case string:
			if i == 0 {
				title = v
			} else {
				parts = append(parts, v)
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					tags = append(tags, strings.ToLower(s))
				}
			}
		case []string:
			for _, s := range v {
				if s != "" {
					tags = append(tags, strings.ToLower(s))
				}
			}
		}
	}
	return title, strings.Join(parts, "\n"), tags
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
