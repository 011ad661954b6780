package storage

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// PermanentPasswordKey is the config option written by SetPassword
const PermanentPasswordKey = "permanent-password"

// StrategyStore specifies the functions that a device strategy store should have
type StrategyStore interface {
	SetPassword(deviceID string, newPassword string) int64
	GetStrategyIfModified(deviceID string, clientModifiedAt int64) *StrategyUpdate
}

// DeviceStrategy holds the configuration bundle pushed down to a device
type DeviceStrategy struct {
	ConfigOptions map[string]string `json:"config_options"`
	Extra         map[string]string `json:"extra"`
}

// StrategyUpdate is the heartbeat payload returned when a device's cached
// strategy is stale
type StrategyUpdate struct {
	ModifiedAt int64          `json:"modified_at"`
	Strategy   DeviceStrategy `json:"strategy"`
}

type strategyEntry struct {
	modifiedAt    int64
	configOptions map[string]string
	extra         map[string]string
}

// MemoryStrategyStore implements the in-memory version of the StrategyStore
// interface. A single mutex serializes all operations; the lock is only held
// for the duration of one map access plus small copies, never across I/O.
type MemoryStrategyStore struct {
	mu      sync.Mutex
	entries map[string]strategyEntry
	Logger  *zap.Logger
}

func unixMilliseconds(t time.Time) int64 {
	return int64(t.UnixNano() / int64(time.Millisecond))
}

func copyOptions(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// NewMemoryStrategyStore initializes an empty MemoryStrategyStore
func NewMemoryStrategyStore(logger *zap.Logger) *MemoryStrategyStore {
	return &MemoryStrategyStore{
		entries: make(map[string]strategyEntry),
		Logger:  logger,
	}
}

// SetPassword stores or overwrites the permanent-password strategy for the
// device and returns the new modified_at stamp. It never fails.
func (store *MemoryStrategyStore) SetPassword(deviceID string, newPassword string) int64 {
	store.mu.Lock()
	defer store.mu.Unlock()

	ts := unixMilliseconds(time.Now())

	store.entries[deviceID] = strategyEntry{
		modifiedAt:    ts,
		configOptions: map[string]string{PermanentPasswordKey: newPassword},
		extra:         map[string]string{},
	}

	store.Logger.Debug("SetPassword(): Stored device strategy.", zap.String("device_id", deviceID), zap.Int64("modified_at", ts))

	return ts
}

// GetStrategyIfModified returns the current strategy for the device, or nil
// when the device is unknown or the client already holds the stored stamp.
// The comparison is exact equality on purpose: any mismatching stamp gets the
// full payload, the protocol is not an incremental diff.
func (store *MemoryStrategyStore) GetStrategyIfModified(deviceID string, clientModifiedAt int64) *StrategyUpdate {
	store.mu.Lock()
	defer store.mu.Unlock()

	entry, ok := store.entries[deviceID]
	if !ok {
		return nil
	}

	if entry.modifiedAt == clientModifiedAt {
		return nil
	}

	// Hand out copies so callers can never observe a later write in place.
	return &StrategyUpdate{
		ModifiedAt: entry.modifiedAt,
		Strategy: DeviceStrategy{
			ConfigOptions: copyOptions(entry.configOptions),
			Extra:         copyOptions(entry.extra),
		},
	}
}
