package cmd

import (
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/flowpilot/pkg/channels/kafka"
	"github.com/dukex/flowpilot/pkg/persistence/cache"
	"github.com/dukex/flowpilot/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "./data", want: "file"},
		{url: "file://./data", want: "file"},
		{url: "postgres://user@localhost/flowpilot", want: "postgres"},
		{url: "postgresql://user@localhost/flowpilot", want: "postgresql"},
		{url: "mongodb://localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := parsePersistenceProvider(tt.url)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedPersistence)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPersistence_File(t *testing.T) {
	p, err := NewPersistence(t.Context(), slog.Default(), "file://"+t.TempDir(), "")
	require.NoError(t, err)

	assert.IsType(t, &file.Persistence{}, p)
	require.NoError(t, p.HealthCheck(t.Context()))
	require.NoError(t, p.Close(t.Context()))
}

func TestNewPersistence_WithCache(t *testing.T) {
	mr := miniredis.RunT(t)

	p, err := NewPersistence(t.Context(), slog.Default(), t.TempDir(), "redis://"+mr.Addr())
	require.NoError(t, err)

	assert.IsType(t, &cache.Persistence{}, p)
	require.NoError(t, p.Close(t.Context()))
}

func TestNewPersistence_InvalidRedisURL(t *testing.T) {
	_, err := NewPersistence(t.Context(), slog.Default(), t.TempDir(), "http://not-redis")
	require.Error(t, err)
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("", "", slog.Default())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	bus, err = NewEventBus("gochannel", "", slog.Default())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", " , ", slog.Default())
	require.ErrorIs(t, err, kafka.ErrNoBrokers)

	_, err = NewEventBus("rabbitmq", "", slog.Default())
	require.ErrorIs(t, err, ErrUnsupportedEventBus)
}

func TestNewHistoryStore(t *testing.T) {
	assert.Nil(t, NewHistoryStore(""))
	assert.NotNil(t, NewHistoryStore(t.TempDir()))
}
