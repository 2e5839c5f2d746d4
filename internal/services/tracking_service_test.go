package services_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"yetkaz/internal/apperrors"
	"yetkaz/internal/models"
	"yetkaz/internal/repositories"
	"yetkaz/internal/services"
)

// Tashkent city center and a point a couple hundred meters away.
const (
	tkLat = 41.2995
	tkLng = 69.2401
)

type trackingFixture struct {
	orders   *repositories.MockOrderRepository
	users    *repositories.MockUserRepository
	branches *repositories.MockBranchRepository
	store    repositories.LocationStore
	svc      *services.TrackingService
}

func newTrackingFixture(t *testing.T) *trackingFixture {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &trackingFixture{
		orders:   repositories.NewMockOrderRepository(),
		users:    repositories.NewMockUserRepository(),
		branches: repositories.NewMockBranchRepository(),
		store:    repositories.NewRedisLocationStore(client),
	}
	f.svc = services.NewTrackingService(f.orders, f.users, f.branches, f.store, zap.NewNop().Sugar())
	assert.NoError(t, f.users.Create(&models.User{ID: "driver-1", Name: "Bobur", Phone: "+998901112233", Role: models.RoleDriver}))
	return f
}

func (f *trackingFixture) seedOrder(t *testing.T, status models.OrderStatus, driverID string) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID: "user-1",
		Status: status,
	}
	if driverID != "" {
		order.DriverID = &driverID
	}
	assert.NoError(t, f.orders.Create(order))
	return order
}

func TestRecordDriverLocation_RejectsInvalidCoordinates(t *testing.T) {
	f := newTrackingFixture(t)
	_, err := f.svc.RecordDriverLocation(context.Background(), "driver-1", 91, 0)
	assertErrorKind(t, err, apperrors.KindValidation)
}

func TestRecordDriverLocation_StoresSample(t *testing.T) {
	f := newTrackingFixture(t)

	events, err := f.svc.RecordDriverLocation(context.Background(), "driver-1", tkLat, tkLng)
	assert.NoError(t, err)
	assert.Empty(t, events)

	loc, err := f.store.Get(context.Background(), "driver-1")
	assert.NoError(t, err)
	if assert.NotNil(t, loc) {
		assert.Equal(t, tkLat, loc.Lat)
		assert.Equal(t, tkLng, loc.Lng)
	}
}

func TestRecordDriverLocation_MirrorsOntoSingleActiveOrder(t *testing.T) {
	f := newTrackingFixture(t)
	order := f.seedOrder(t, models.OrderStatusOutForDelivery, "driver-1")
	// Destination far away so no proximity event fires.
	destLat, destLng := 39.627, 66.975
	order.DeliveryLat = &destLat
	order.DeliveryLng = &destLng
	assert.NoError(t, f.orders.Update(order))

	events, err := f.svc.RecordDriverLocation(context.Background(), "driver-1", tkLat, tkLng)
	assert.NoError(t, err)
	assert.Empty(t, events)

	stored, err := f.orders.GetByID(order.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, stored.DriverLocation()) {
		assert.Equal(t, tkLat, stored.DriverLocation().Lat)
	}
}

func TestRecordDriverLocation_AmbiguousWithTwoActiveOrders(t *testing.T) {
	f := newTrackingFixture(t)
	a := f.seedOrder(t, models.OrderStatusOutForDelivery, "driver-1")
	f.seedOrder(t, models.OrderStatusOutForDelivery, "driver-1")

	events, err := f.svc.RecordDriverLocation(context.Background(), "driver-1", tkLat, tkLng)
	assert.NoError(t, err)
	assert.Empty(t, events)

	stored, err := f.orders.GetByID(a.ID)
	assert.NoError(t, err)
	assert.Nil(t, stored.DriverLocation())
}

func TestRecordDriverLocation_EmitsNearbyEvent(t *testing.T) {
	f := newTrackingFixture(t)
	order := f.seedOrder(t, models.OrderStatusOutForDelivery, "driver-1")
	destLat, destLng := tkLat, tkLng
	order.DeliveryLat = &destLat
	order.DeliveryLng = &destLng
	assert.NoError(t, f.orders.Update(order))

	// ~200m north of the destination, inside the 0.5 km zone.
	events, err := f.svc.RecordDriverLocation(context.Background(), "driver-1", tkLat+0.0018, tkLng)
	assert.NoError(t, err)
	if assert.Len(t, events, 1) {
		assert.Equal(t, services.EventDriverNearby, events[0].Type)
		assert.Equal(t, order.ID, events[0].OrderID)
	}

	// Every qualifying ping re-emits; there is no cooldown.
	events, err = f.svc.RecordDriverLocation(context.Background(), "driver-1", tkLat+0.0018, tkLng)
	assert.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestStartDelivery(t *testing.T) {
	f := newTrackingFixture(t)
	order := f.seedOrder(t, models.OrderStatusPreparing, "driver-1")

	dest := models.GeoPoint{Lat: tkLat, Lng: tkLng}

	// Only the assigned driver or an admin may start.
	_, _, err := f.svc.StartDelivery(context.Background(), order.ID, "driver-2", models.RoleDriver, dest)
	assertErrorKind(t, err, apperrors.KindForbidden)

	updated, events, err := f.svc.StartDelivery(context.Background(), order.ID, "driver-1", models.RoleDriver, dest)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusOutForDelivery, updated.Status)
	assert.NotNil(t, updated.DeliveryStartedAt)
	// No GPS sample yet: the fixed default ETA is used.
	if assert.NotNil(t, updated.EtaMinutes) {
		assert.Equal(t, services.DefaultETAMinutes, *updated.EtaMinutes)
	}
	if assert.Len(t, events, 1) {
		assert.Equal(t, services.EventDeliveryStarted, events[0].Type)
	}

	// Starting twice is an invalid transition.
	_, _, err = f.svc.StartDelivery(context.Background(), order.ID, "driver-1", models.RoleDriver, dest)
	assertErrorKind(t, err, apperrors.KindInvalidState)
}

func TestStartDelivery_ETAFromLastKnownLocation(t *testing.T) {
	f := newTrackingFixture(t)
	order := f.seedOrder(t, models.OrderStatusPreparing, "driver-1")

	// Driver is right at the destination; ETA collapses to prep time.
	_, err := f.svc.RecordDriverLocation(context.Background(), "driver-1", tkLat, tkLng)
	assert.NoError(t, err)

	updated, _, err := f.svc.StartDelivery(context.Background(), order.ID, "driver-1", models.RoleDriver,
		models.GeoPoint{Lat: tkLat, Lng: tkLng})
	assert.NoError(t, err)
	if assert.NotNil(t, updated.EtaMinutes) {
		assert.Less(t, *updated.EtaMinutes, services.DefaultETAMinutes)
	}
}

func TestCompleteDelivery(t *testing.T) {
	f := newTrackingFixture(t)
	order := f.seedOrder(t, models.OrderStatusOutForDelivery, "driver-1")

	updated, events, err := f.svc.CompleteDelivery(order.ID, "driver-1", models.RoleDriver)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, updated.Status)
	assert.NotNil(t, updated.DeliveryFinishedAt)
	if assert.Len(t, events, 1) {
		assert.Equal(t, services.EventDelivered, events[0].Type)
	}

	_, _, err = f.svc.CompleteDelivery(order.ID, "driver-1", models.RoleDriver)
	assertErrorKind(t, err, apperrors.KindInvalidState)
}

func TestGetTracking(t *testing.T) {
	f := newTrackingFixture(t)
	assert.NoError(t, f.branches.Create(&models.Branch{Name: "Chilonzor", Lat: tkLat, Lng: tkLng, Active: true}))
	assert.NoError(t, f.branches.Create(&models.Branch{Name: "Samarkand", Lat: 39.627, Lng: 66.975, Active: true}))

	order := f.seedOrder(t, models.OrderStatusOutForDelivery, "driver-1")

	// Destination known, driver position not: tracking block is absent.
	destLat, destLng := tkLat, tkLng
	order.DeliveryLat = &destLat
	order.DeliveryLng = &destLng
	assert.NoError(t, f.orders.Update(order))

	info, err := f.svc.GetTracking(order.ID, "user-1", models.RoleCustomer)
	assert.NoError(t, err)
	assert.Nil(t, info.Tracking)
	if assert.NotNil(t, info.Driver) {
		assert.Equal(t, "Bobur", info.Driver.Name)
	}
	if assert.NotNil(t, info.NearestBranch) {
		assert.Equal(t, "Chilonzor", info.NearestBranch.Name)
	}

	// A mirrored driver position completes the block.
	_, err = f.svc.RecordDriverLocation(context.Background(), "driver-1", tkLat+0.0018, tkLng)
	assert.NoError(t, err)
	info, err = f.svc.GetTracking(order.ID, "user-1", models.RoleCustomer)
	assert.NoError(t, err)
	if assert.NotNil(t, info.Tracking) {
		assert.True(t, info.Tracking.Near)
		assert.Less(t, info.Tracking.DistanceKm, 0.5)
	}

	// Strangers are rejected.
	_, err = f.svc.GetTracking(order.ID, "stranger", models.RoleCustomer)
	assertErrorKind(t, err, apperrors.KindForbidden)
}

func TestActiveDeliveries(t *testing.T) {
	f := newTrackingFixture(t)
	f.seedOrder(t, models.OrderStatusOutForDelivery, "driver-1")
	f.seedOrder(t, models.OrderStatusPending, "")

	active, err := f.svc.ActiveDeliveries()
	assert.NoError(t, err)
	assert.Len(t, active, 1)
}
