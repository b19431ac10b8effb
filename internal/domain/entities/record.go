package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reserved keys are managed by the platform and never taken from client input
var reservedKeys = map[string]struct{}{
	"id":           {},
	"created_by":   {},
	"created_date": {},
	"updated_date": {},
}

// IsReservedKey reports whether key is platform-managed
func IsReservedKey(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// Record is a persisted entity document
type Record struct {
	ID          string         `db:"id"`
	Entity      string         `db:"entity"`
	CreatedBy   string         `db:"created_by"`
	CreatedDate time.Time      `db:"created_date"`
	UpdatedDate time.Time      `db:"updated_date"`
	Data        map[string]any `db:"data"`
}

// NewRecord builds an unsaved record for entity with reserved keys stripped from data
func NewRecord(entity, createdBy string, data map[string]any) *Record {
	return &Record{
		Entity:    entity,
		CreatedBy: createdBy,
		Data:      StripReserved(data),
	}
}

// StripReserved returns a copy of data without platform-managed keys
func StripReserved(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if IsReservedKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// Flatten returns the wire form: data fields plus the platform fields
func (r *Record) Flatten() map[string]any {
	out := make(map[string]any, len(r.Data)+4)
	for k, v := range r.Data {
		out[k] = v
	}
	out["id"] = r.ID
	out["created_by"] = r.CreatedBy
	out["created_date"] = r.CreatedDate.UTC().Format(time.RFC3339Nano)
	out["updated_date"] = r.UpdatedDate.UTC().Format(time.RFC3339Nano)
	return out
}

// MarshalJSON encodes the flattened record
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Flatten())
}

// UnmarshalJSON decodes a flattened record
func (r *Record) UnmarshalJSON(b []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		return err
	}
	r.ID, _ = flat["id"].(string)
	r.CreatedBy, _ = flat["created_by"].(string)
	if s, ok := flat["created_date"].(string); ok {
		r.CreatedDate, _ = time.Parse(time.RFC3339Nano, s)
	}
	if s, ok := flat["updated_date"].(string); ok {
		r.UpdatedDate, _ = time.Parse(time.RFC3339Nano, s)
	}
	r.Data = StripReserved(flat)
	return nil
}

// Decode copies the flattened record into a typed view such as *Appointment
func (r *Record) Decode(v any) error {
	b, err := json.Marshal(r.Flatten())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode %s record %s: %w", r.Entity, r.ID, err)
	}
	return nil
}

// String returns the data field as a string ("" when absent or not a string)
func (r *Record) String(field string) string {
	s, _ := r.Data[field].(string)
	return s
}

// Number returns the data field as a float64
func (r *Record) Number(field string) float64 {
	switch v := r.Data[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// Bool returns the data field as a bool
func (r *Record) Bool(field string) bool {
	b, _ := r.Data[field].(bool)
	return b
}

// ToData converts a typed view into a data map suitable for Create/Update.
// Reserved keys are dropped.
func ToData(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return StripReserved(m), nil
}

// Base holds the platform fields shared by every typed view
type Base struct {
	ID          string    `json:"id,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedDate time.Time `json:"created_date,omitempty"`
	UpdatedDate time.Time `json:"updated_date,omitempty"`
}
