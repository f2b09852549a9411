package connectors

import (
	"errors"
	"fmt"

	"github.com/pulseloop/server/pkg/types"
)

// ErrUnknownConnector means no connector exists for a
// (device type, event type) pair. Non-retryable; surfaces to the caller
// before any side effect.
var ErrUnknownConnector = errors.New("unknown connector")

// Key identifies a connector in the registry.
type Key struct {
	Device    types.Device
	EventType string
}

var registry = map[Key]Factory{
	{types.DeviceFitbit, "activities"}: fitbitFactory(fitbitResourceActivities),
	{types.DeviceFitbit, "bp"}:         fitbitFactory(fitbitResourceBody),
	{types.DeviceFitbit, "sleep"}:      fitbitFactory(fitbitResourceSleep),
	{types.DeviceHumanAPI, "update"}:   NewHumanAPIConnector,
	{types.DeviceMoves, "DataUpload"}:  NewMovesConnector,
}

// Resolve returns the factory for a (device, event type) pair.
func Resolve(device types.Device, eventType string) (Factory, error) {
	factory, ok := registry[Key{Device: device, EventType: eventType}]
	if !ok {
		return nil, fmt.Errorf("%w for device_type %q and event_type %q",
			ErrUnknownConnector, device.String(), eventType)
	}
	return factory, nil
}
