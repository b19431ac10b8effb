package entities

// OrderStatus represents the state of a medicine order
type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "placed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderProgression = map[OrderStatus]int{
	OrderStatusPlaced:     0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

// CanTransitionTo reports whether an order may move from s to next.
// Orders only move forward; cancellation is allowed until shipment.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == OrderStatusCancelled || s == OrderStatusDelivered {
		return false
	}
	if next == OrderStatusCancelled {
		return orderProgression[s] < orderProgression[OrderStatusShipped]
	}
	from, okFrom := orderProgression[s]
	to, okTo := orderProgression[next]
	return okFrom && okTo && to == from+1
}

// Medicine is a catalogue item
type Medicine struct {
	Base
	Name                 string  `json:"name"`
	GenericName          string  `json:"generic_name,omitempty"`
	Category             string  `json:"category,omitempty"`
	Manufacturer         string  `json:"manufacturer,omitempty"`
	Price                float64 `json:"price"`
	InStock              bool    `json:"in_stock"`
	RequiresPrescription bool    `json:"requires_prescription"`
}

// OrderItem is one line of a medicine order
type OrderItem struct {
	MedicineID string  `json:"medicine_id"`
	Name       string  `json:"name,omitempty"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price,omitempty"`
}

// MedicineOrder is a patient's pharmacy order
type MedicineOrder struct {
	Base
	PatientEmail    string      `json:"patient_email"`
	Items           []OrderItem `json:"items"`
	DeliveryAddress string      `json:"delivery_address"`
	PrescriptionURL string      `json:"prescription_url,omitempty"`
	TotalAmount     float64     `json:"total_amount"`
	Status          OrderStatus `json:"status"`
}
