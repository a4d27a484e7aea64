package pubsubbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrNoMeshMessage(t *testing.T) {
	err := &ErrNoMesh{Topic: DefaultTopic, MinSubs: 1}
	require.Contains(t, err.Error(), DefaultTopic)
	require.Contains(t, err.Error(), "1")
}
