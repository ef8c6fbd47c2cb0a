package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_ValidDirectory(t *testing.T) {
	queues, err := Load("testdata/valid")
	require.NoError(t, err)
	require.Len(t, queues, 2)

	require.Equal(t, "orders", queues[0].Name)
	require.Equal(t, time.Hour, queues[0].MaxRetention)
	require.Empty(t, queues[0].SyncTagOverride)

	require.Equal(t, "telemetry", queues[1].Name)
	require.Equal(t, 24*time.Hour, queues[1].MaxRetention)
	require.Equal(t, "replayq:telemetry-custom", queues[1].SyncTagOverride)
}

func TestLoad_InvalidDirectory_RejectsNegativeRetention(t *testing.T) {
	_, err := Load("testdata/invalid")
	require.Error(t, err)
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := Load("testdata/does-not-exist")
	require.Error(t, err)
}
