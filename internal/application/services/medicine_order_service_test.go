package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

type orderFixture struct {
	svc          *services.MedicineOrderService
	repo         *memoryEntityRepository
	paracetamol  *entities.Record
	amoxicillin  *entities.Record
	discontinued *entities.Record
	patient      *entities.Principal
	admin        *entities.Principal
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	repo := newMemoryEntityRepository()
	bus := newRecordingEventBus()
	entitySvc := services.NewEntityService(repo, nil, bus, nil)

	return &orderFixture{
		svc:  services.NewMedicineOrderService(entitySvc, services.NewNotificationService(entitySvc, bus)),
		repo: repo,
		paracetamol: repo.seed(t, entities.EntityMedicine, services.SystemActor, &entities.Medicine{
			Name: "Paracetamol 500mg", Price: 2.35, InStock: true,
		}),
		amoxicillin: repo.seed(t, entities.EntityMedicine, services.SystemActor, &entities.Medicine{
			Name: "Amoxicillin 250mg", Price: 7.1, InStock: true, RequiresPrescription: true,
		}),
		discontinued: repo.seed(t, entities.EntityMedicine, services.SystemActor, &entities.Medicine{
			Name: "Old Syrup", Price: 3, InStock: false,
		}),
		patient: principal("pat@example.com", entities.RoleUser),
		admin:   principal("root@example.com", entities.RoleAdmin),
	}
}

func TestMedicineOrderService_Place(t *testing.T) {
	ctx := context.Background()

	t.Run("prices items from the catalogue", func(t *testing.T) {
		f := newOrderFixture(t)

		order, err := f.svc.Place(ctx, f.patient, services.PlaceOrderRequest{
			Items: []entities.OrderItem{
				{MedicineID: f.paracetamol.ID, Quantity: 3, UnitPrice: 0.01},
			},
			DeliveryAddress: "4 Allen Avenue",
		})

		require.NoError(t, err)
		assert.Equal(t, entities.OrderStatusPlaced, order.Status)
		assert.Equal(t, 7.05, order.TotalAmount)
		require.Len(t, order.Items, 1)
		assert.Equal(t, "Paracetamol 500mg", order.Items[0].Name)
		assert.Equal(t, 2.35, order.Items[0].UnitPrice)
		assert.Equal(t, "pat@example.com", order.PatientEmail)
	})

	t.Run("prescription medicines need a prescription", func(t *testing.T) {
		f := newOrderFixture(t)
		req := services.PlaceOrderRequest{
			Items: []entities.OrderItem{
				{MedicineID: f.paracetamol.ID, Quantity: 1},
				{MedicineID: f.amoxicillin.ID, Quantity: 2},
			},
			DeliveryAddress: "4 Allen Avenue",
		}

		_, err := f.svc.Place(ctx, f.patient, req)
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
		assert.Contains(t, err.Error(), "Amoxicillin")

		req.PrescriptionURL = "https://files.test/rx.pdf"
		order, err := f.svc.Place(ctx, f.patient, req)
		require.NoError(t, err)
		assert.Equal(t, 16.55, order.TotalAmount)
	})

	t.Run("rejects invalid orders", func(t *testing.T) {
		f := newOrderFixture(t)

		cases := []struct {
			name string
			req  services.PlaceOrderRequest
			want apperrors.ErrorType
		}{
			{"no items", services.PlaceOrderRequest{DeliveryAddress: "x"}, apperrors.ErrorTypeValidation},
			{"no address", services.PlaceOrderRequest{Items: []entities.OrderItem{{MedicineID: f.paracetamol.ID, Quantity: 1}}}, apperrors.ErrorTypeValidation},
			{"zero quantity", services.PlaceOrderRequest{Items: []entities.OrderItem{{MedicineID: f.paracetamol.ID}}, DeliveryAddress: "x"}, apperrors.ErrorTypeValidation},
			{"out of stock", services.PlaceOrderRequest{Items: []entities.OrderItem{{MedicineID: f.discontinued.ID, Quantity: 1}}, DeliveryAddress: "x"}, apperrors.ErrorTypeValidation},
			{"unknown medicine", services.PlaceOrderRequest{Items: []entities.OrderItem{{MedicineID: "missing", Quantity: 1}}, DeliveryAddress: "x"}, apperrors.ErrorTypeNotFound},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := f.svc.Place(ctx, f.patient, tc.req)
				assert.Equal(t, tc.want, apperrors.TypeOf(err))
			})
		}
		assert.Empty(t, f.repo.all(entities.EntityMedicineOrder))
	})
}

func TestMedicineOrderService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	place := func() *entities.MedicineOrder {
		order, err := f.svc.Place(ctx, f.patient, services.PlaceOrderRequest{
			Items:           []entities.OrderItem{{MedicineID: f.paracetamol.ID, Quantity: 1}},
			DeliveryAddress: "4 Allen Avenue",
		})
		require.NoError(t, err)
		return order
	}

	t.Run("admin advances one step at a time", func(t *testing.T) {
		order := place()

		_, err := f.svc.UpdateStatus(ctx, f.admin, order.ID, entities.OrderStatusShipped)
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

		for _, next := range []entities.OrderStatus{entities.OrderStatusProcessing, entities.OrderStatusShipped} {
			updated, err := f.svc.UpdateStatus(ctx, f.admin, order.ID, next)
			require.NoError(t, err)
			assert.Equal(t, next, updated.Status)
		}

		_, err = f.svc.UpdateStatus(ctx, f.patient, order.ID, entities.OrderStatusCancelled)
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	})

	t.Run("patients may only cancel their own orders", func(t *testing.T) {
		order := place()

		_, err := f.svc.UpdateStatus(ctx, f.patient, order.ID, entities.OrderStatusProcessing)
		assert.Equal(t, apperrors.ErrorTypeForbidden, apperrors.TypeOf(err))

		_, err = f.svc.UpdateStatus(ctx, principal("other@example.com", entities.RoleUser), order.ID, entities.OrderStatusCancelled)
		assert.True(t, apperrors.IsNotFound(err))

		cancelled, err := f.svc.UpdateStatus(ctx, f.patient, order.ID, entities.OrderStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, entities.OrderStatusCancelled, cancelled.Status)
	})

	t.Run("list mine", func(t *testing.T) {
		orders, err := f.svc.ListMine(ctx, f.patient)
		require.NoError(t, err)
		assert.Len(t, orders, 2)
	})
}
