package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DriverLocation is a single GPS sample. Samples are not retained as history;
// each write overwrites the previous one (the system tracks "where is the
// driver now", not a trajectory log).
type DriverLocation struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

// LocationStore holds the last known GPS sample per driver.
type LocationStore interface {
	Set(ctx context.Context, driverID string, loc DriverLocation) error
	// Get returns nil when no sample is known for the driver.
	Get(ctx context.Context, driverID string) (*DriverLocation, error)
}

// locationTTL bounds how long a stale sample survives a driver going offline.
const locationTTL = 30 * time.Minute

// RedisLocationStore keeps driver locations in redis under a TTL'd key per
// driver. Last write wins; concurrent pings need no further ordering since
// GPS samples are best-effort and stale ones are harmless once overwritten.
type RedisLocationStore struct {
	client *redis.Client
}

// NewRedisLocationStore creates a new RedisLocationStore.
func NewRedisLocationStore(client *redis.Client) *RedisLocationStore {
	return &RedisLocationStore{client: client}
}

func locationKey(driverID string) string {
	return "driver:location:" + driverID
}

// Set overwrites the driver's last known location.
func (s *RedisLocationStore) Set(ctx context.Context, driverID string, loc DriverLocation) error {
	raw, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to marshal driver location: %w", err)
	}
	if err := s.client.Set(ctx, locationKey(driverID), raw, locationTTL).Err(); err != nil {
		return fmt.Errorf("failed to store driver location: %w", err)
	}
	return nil
}

// Get reads the driver's last known location, or nil when none is stored.
func (s *RedisLocationStore) Get(ctx context.Context, driverID string) (*DriverLocation, error) {
	raw, err := s.client.Get(ctx, locationKey(driverID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read driver location: %w", err)
	}
	var loc DriverLocation
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal driver location: %w", err)
	}
	return &loc, nil
}
