package protolog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	event := Event{
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		EngineID:  "b5c2c9a0-0000-4000-8000-000000000001",
		Layer:     LayerRecord,
		Category:  CategoryData,
		Record: &RecordEvent{
			DeviceKey: "0_10",
			Samples:   3,
			Attrs:     2,
		},
	}

	data, err := EncodeEvent(event)
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.True(t, decoded.Timestamp.Equal(event.Timestamp))
	assert.Equal(t, event.EngineID, decoded.EngineID)
	assert.Equal(t, LayerRecord, decoded.Layer)
	assert.Equal(t, CategoryData, decoded.Category)
	require.NotNil(t, decoded.Record)
	assert.Equal(t, event.Record, decoded.Record)
	assert.Nil(t, decoded.Frame)
	assert.Nil(t, decoded.Lifecycle)
	assert.Nil(t, decoded.Error)
}

func TestFrameEventRoundTrip(t *testing.T) {
	event := Event{
		Timestamp: time.Now().UTC(),
		EngineID:  "engine",
		Layer:     LayerFrame,
		Category:  CategoryData,
		Frame: &FrameEvent{
			Size:      10,
			Kind:      "binary",
			Topic:     "devbin",
			Version:   1,
			Data:      []byte{0xDB, 0x01, 0x02},
			Truncated: true,
		},
	}

	data, err := EncodeEvent(event)
	require.NoError(t, err)
	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, event.Frame, decoded.Frame)
}

func TestErrorEventRoundTrip(t *testing.T) {
	event := Event{
		Timestamp: time.Now().UTC(),
		EngineID:  "engine",
		Layer:     LayerRecord,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Message: "record length overrun",
			Context: "devbin frame",
		},
	}

	data, err := EncodeEvent(event)
	require.NoError(t, err)
	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, event.Error, decoded.Error)
}

func TestDecodeEventBadData(t *testing.T) {
	_, err := DecodeEvent([]byte{0xFF, 0xFF})
	assert.Error(t, err)
}

func TestLayerCategoryNames(t *testing.T) {
	assert.Equal(t, "FRAME", LayerFrame.String())
	assert.Equal(t, "RECORD", LayerRecord.String())
	assert.Equal(t, "LIFECYCLE", LayerLifecycle.String())
	assert.Equal(t, "UNKNOWN", Layer(9).String())

	assert.Equal(t, "DATA", CategoryData.String())
	assert.Equal(t, "STATE", CategoryState.String())
	assert.Equal(t, "ERROR", CategoryError.String())
	assert.Equal(t, "UNKNOWN", Category(9).String())
}
