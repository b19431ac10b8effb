package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord_StripsReservedKeys(t *testing.T) {
	rec := NewRecord(EntityArticle, "a@example.com", map[string]any{
		"id":           "forged",
		"created_by":   "someone@else.com",
		"created_date": "2020-01-01T00:00:00Z",
		"title":        "Hydration",
	})

	assert.Equal(t, "a@example.com", rec.CreatedBy)
	assert.Equal(t, map[string]any{"title": "Hydration"}, rec.Data)
}

func TestRecord_JSONRoundTripIsFlat(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := &Record{
		ID:          "rec-1",
		Entity:      EntityDoctor,
		CreatedBy:   "admin@example.com",
		CreatedDate: created,
		UpdatedDate: created,
		Data:        map[string]any{"full_name": "Dr. Ada", "consultation_fee": 500.0},
	}

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(b, &flat))
	assert.Equal(t, "rec-1", flat["id"])
	assert.Equal(t, "Dr. Ada", flat["full_name"])
	assert.Equal(t, "2024-03-01T09:30:00Z", flat["created_date"])

	var decoded Record
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, rec.ID, decoded.ID)
	assert.True(t, created.Equal(decoded.CreatedDate))
	assert.Equal(t, rec.Data, decoded.Data)
}

func TestRecord_DecodeTypedView(t *testing.T) {
	rec := &Record{
		ID:        "doc-1",
		Entity:    EntityDoctor,
		CreatedBy: "admin@example.com",
		Data: map[string]any{
			"full_name":           "Dr. Ada",
			"specialization":      "Cardiology",
			"consultation_fee":    750.0,
			"available":           true,
			"verification_status": "verified",
		},
	}

	var doc Doctor
	require.NoError(t, rec.Decode(&doc))
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "Cardiology", doc.Specialization)
	assert.Equal(t, 750.0, doc.ConsultationFee)
	assert.True(t, doc.Bookable())
}

func TestRecord_Accessors(t *testing.T) {
	rec := &Record{Data: map[string]any{
		"name":     "Paracetamol",
		"price":    12.5,
		"qty":      3,
		"in_stock": true,
	}}

	assert.Equal(t, "Paracetamol", rec.String("name"))
	assert.Equal(t, "", rec.String("price"))
	assert.Equal(t, 12.5, rec.Number("price"))
	assert.Equal(t, 3.0, rec.Number("qty"))
	assert.True(t, rec.Bool("in_stock"))
	assert.False(t, rec.Bool("missing"))
}

func TestToData_DropsPlatformFields(t *testing.T) {
	data, err := ToData(&Notification{
		Base:      Base{ID: "n-1", CreatedBy: "x@example.com"},
		UserEmail: "p@example.com",
		Title:     "Booked",
		Type:      NotificationAppointment,
	})
	require.NoError(t, err)

	assert.NotContains(t, data, "id")
	assert.NotContains(t, data, "created_by")
	assert.Equal(t, "p@example.com", data["user_email"])
	assert.Equal(t, false, data["is_read"])
}
