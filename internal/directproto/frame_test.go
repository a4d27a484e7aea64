package directproto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello direct protocol")

	require.NoError(t, writeFrame(&buf, payload))

	got, err := readFrame(&buf, DefaultMaxMessageSize)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadFrameRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, 100)

	require.NoError(t, writeFrame(&buf, payload))

	_, err := readFrame(&buf, 10)
	require.Error(t, err)

	var oe *OversizeFrame
	require.ErrorAs(t, err, &oe)
	require.Equal(t, 10, oe.Limit)
	require.EqualValues(t, 100, oe.Got)
}

func TestReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, nil))

	got, err := readFrame(&buf, DefaultMaxMessageSize)
	require.NoError(t, err)
	require.Empty(t, got)
}
