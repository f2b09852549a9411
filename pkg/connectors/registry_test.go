package connectors_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseloop/server/pkg/connectors"
	"github.com/pulseloop/server/pkg/types"
)

func TestResolve_KnownPairs(t *testing.T) {
	tests := []struct {
		device    types.Device
		eventType string
	}{
		{types.DeviceFitbit, "activities"},
		{types.DeviceFitbit, "bp"},
		{types.DeviceFitbit, "sleep"},
		{types.DeviceHumanAPI, "update"},
		{types.DeviceMoves, "DataUpload"},
	}
	for _, tt := range tests {
		t.Run(tt.device.String()+"/"+tt.eventType, func(t *testing.T) {
			factory, err := connectors.Resolve(tt.device, tt.eventType)
			require.NoError(t, err)
			require.NotNil(t, factory)
			assert.NotNil(t, factory(types.ProcessingRequest{}))
		})
	}
}

func TestResolve_UnknownPair(t *testing.T) {
	tests := []struct {
		name      string
		device    types.Device
		eventType string
	}{
		{"unknown device", types.Device(42), "activities"},
		{"unknown event type", types.DeviceFitbit, "heartbeat"},
		{"case sensitive", types.DeviceMoves, "dataupload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := connectors.Resolve(tt.device, tt.eventType)
			assert.Nil(t, factory)
			assert.ErrorIs(t, err, connectors.ErrUnknownConnector)
		})
	}
}

func TestMovesNeedsFinalSnapshot(t *testing.T) {
	conn := connectors.NewMovesConnector(types.ProcessingRequest{})
	sc, ok := conn.(connectors.SnapshotConnector)
	require.True(t, ok)
	assert.True(t, sc.NeedsFinalSnapshot())
}
