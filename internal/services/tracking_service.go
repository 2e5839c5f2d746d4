package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"yetkaz/internal/apperrors"
	"yetkaz/internal/models"
	"yetkaz/internal/repositories"
	"yetkaz/pkg/geo"
)

// DefaultETAMinutes is used when the driver has no known location yet at
// delivery start.
const DefaultETAMinutes = 30

// TrackingBlock is the live geometry computed from the stored coordinate
// pairs. Absent entirely when either coordinate is missing.
type TrackingBlock struct {
	DistanceKm float64 `json:"distance_km"`
	EtaMinutes int     `json:"eta_minutes"`
	Near       bool    `json:"near"`
}

// DriverSummary is the slim driver view embedded in tracking responses.
type DriverSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// TrackingInfo is the read-only composite returned by GetTracking.
type TrackingInfo struct {
	Order         *models.Order  `json:"order"`
	Driver        *DriverSummary `json:"driver,omitempty"`
	Tracking      *TrackingBlock `json:"tracking"` // null when a coordinate is missing
	NearestBranch *models.Branch `json:"nearest_branch,omitempty"`
}

// TrackingService ingests driver GPS pings and drives the delivery lifecycle.
type TrackingService struct {
	orders    repositories.OrderRepository
	users     repositories.UserRepository
	branches  repositories.BranchRepository
	locations repositories.LocationStore
	log       *zap.SugaredLogger
}

// NewTrackingService creates a new TrackingService.
func NewTrackingService(
	orders repositories.OrderRepository,
	users repositories.UserRepository,
	branches repositories.BranchRepository,
	locations repositories.LocationStore,
	log *zap.SugaredLogger,
) *TrackingService {
	return &TrackingService{
		orders:    orders,
		users:     users,
		branches:  branches,
		locations: locations,
		log:       log,
	}
}

// RecordDriverLocation persists a GPS sample (last write wins) and, when the
// driver has exactly one order out for delivery, mirrors it onto that order.
// Crossing into the 0.5 km zone around the destination emits a driver_nearby
// event.
//
// There is no de-duplication window: a driver hovering near the destination
// keeps emitting the event on every qualifying ping. Known duplicate-alert
// risk, pending a product decision on a cooldown.
func (s *TrackingService) RecordDriverLocation(ctx context.Context, driverID string, lat, lng float64) ([]Event, error) {
	if !geo.ValidCoordinates(lat, lng) {
		return nil, apperrors.Validation("invalid location (%v, %v)", lat, lng)
	}
	sample := repositories.DriverLocation{Lat: lat, Lng: lng, RecordedAt: time.Now()}
	if err := s.locations.Set(ctx, driverID, sample); err != nil {
		return nil, err
	}

	active, err := s.orders.ActiveByDriver(driverID)
	if err != nil {
		return nil, err
	}
	if len(active) != 1 {
		// Zero active orders means nothing to mirror; more than one means
		// the sample is ambiguous and is kept only on the driver.
		return nil, nil
	}
	order := active[0]
	if err := s.orders.UpdateFields(order.ID, map[string]any{
		"driver_lat": lat,
		"driver_lng": lng,
	}); err != nil {
		return nil, err
	}

	dest := order.DeliveryLocation()
	if dest == nil || order.Status == models.OrderStatusDelivered {
		return nil, nil
	}
	here := geo.Point{Lat: lat, Lng: lng}
	there := geo.Point{Lat: dest.Lat, Lng: dest.Lng}
	if !geo.IsNear(here, there) {
		return nil, nil
	}
	return []Event{{
		Type:    EventDriverNearby,
		OrderID: order.ID,
		UserID:  order.UserID,
		Data:    map[string]any{"distance_km": geo.Distance(here, there)},
	}}, nil
}

// StartDelivery stores the destination, moves the order out for delivery and
// computes the initial ETA from the driver's last known location, falling
// back to a fixed default when none exists yet.
func (s *TrackingService) StartDelivery(ctx context.Context, orderID, callerID, role string, dest models.GeoPoint) (*models.Order, []Event, error) {
	if !geo.ValidCoordinates(dest.Lat, dest.Lng) {
		return nil, nil, apperrors.Validation("invalid location (%v, %v)", dest.Lat, dest.Lng)
	}
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, apperrors.NotFound("order")
	}
	if err := authorizeDriverAction(order, callerID, role); err != nil {
		return nil, nil, err
	}
	if !order.Status.CanTransition(models.OrderStatusOutForDelivery) {
		return nil, nil, apperrors.InvalidState("cannot start delivery of a %s order", order.Status)
	}

	eta := DefaultETAMinutes
	if loc, err := s.locations.Get(ctx, orderDriverID(order)); err == nil && loc != nil {
		eta = geo.DefaultETA(geo.Distance(
			geo.Point{Lat: loc.Lat, Lng: loc.Lng},
			geo.Point{Lat: dest.Lat, Lng: dest.Lng},
		))
	}

	now := time.Now()
	order.DeliveryLat = &dest.Lat
	order.DeliveryLng = &dest.Lng
	order.Status = models.OrderStatusOutForDelivery
	order.EtaMinutes = &eta
	order.TrackingStartedAt = &now
	order.DeliveryStartedAt = &now
	if err := s.orders.Update(order); err != nil {
		return nil, nil, err
	}

	s.log.Infow("delivery started", "order_id", order.ID, "eta_minutes", eta)
	events := []Event{{
		Type:    EventDeliveryStarted,
		OrderID: order.ID,
		UserID:  order.UserID,
		Data:    map[string]any{"eta_minutes": eta},
	}}
	return order, events, nil
}

// CompleteDelivery marks the order delivered.
func (s *TrackingService) CompleteDelivery(orderID, callerID, role string) (*models.Order, []Event, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, apperrors.NotFound("order")
	}
	if err := authorizeDriverAction(order, callerID, role); err != nil {
		return nil, nil, err
	}
	if !order.Status.CanTransition(models.OrderStatusDelivered) {
		return nil, nil, apperrors.InvalidState("cannot complete a %s order", order.Status)
	}

	now := time.Now()
	order.Status = models.OrderStatusDelivered
	order.DeliveryFinishedAt = &now
	if err := s.orders.Update(order); err != nil {
		return nil, nil, err
	}

	s.log.Infow("delivery completed", "order_id", order.ID)
	events := []Event{{
		Type:    EventDelivered,
		OrderID: order.ID,
		UserID:  order.UserID,
	}}
	return order, events, nil
}

// GetTracking composes the live tracking view. The tracking block is null
// until both the driver position and the destination are known.
func (s *TrackingService) GetTracking(orderID, callerID, role string) (*TrackingInfo, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.NotFound("order")
	}
	if !canAccessOrder(order, callerID, role) {
		return nil, apperrors.Forbidden("you do not have access to this order")
	}

	info := &TrackingInfo{Order: order}
	if order.DriverID != nil {
		if driver, err := s.users.GetByID(*order.DriverID); err == nil && driver != nil {
			info.Driver = &DriverSummary{ID: driver.ID, Name: driver.Name, Phone: driver.Phone}
		}
	}

	dest := order.DeliveryLocation()
	pos := order.DriverLocation()
	if dest != nil && pos != nil {
		a := geo.Point{Lat: pos.Lat, Lng: pos.Lng}
		b := geo.Point{Lat: dest.Lat, Lng: dest.Lng}
		d := geo.Distance(a, b)
		info.Tracking = &TrackingBlock{
			DistanceKm: d,
			EtaMinutes: geo.DefaultETA(d),
			Near:       geo.IsNear(a, b),
		}
	}
	if dest != nil {
		if branches, err := s.branches.ListActive(); err == nil {
			info.NearestBranch = geo.NearestBranch(geo.Point{Lat: dest.Lat, Lng: dest.Lng}, branches)
		}
	}
	return info, nil
}

// ActiveDeliveries lists every order currently out for delivery (admin view).
func (s *TrackingService) ActiveDeliveries() ([]models.Order, error) {
	return s.orders.ActiveDeliveries()
}

// authorizeDriverAction allows the assigned driver or an admin.
func authorizeDriverAction(order *models.Order, callerID, role string) error {
	if role == models.RoleAdmin {
		return nil
	}
	if order.DriverID != nil && *order.DriverID == callerID {
		return nil
	}
	return apperrors.Forbidden("only the assigned driver may do this")
}

func orderDriverID(order *models.Order) string {
	if order.DriverID == nil {
		return ""
	}
	return *order.DriverID
}
