package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConnectRedis(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), "redis://"+server.Addr()+"/0", "")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := server.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
}

func TestConnectRedisErrors(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "", "graderbot")
	require.Error(t, err)

	_, err = ConnectRedis(context.Background(), "not a url", "graderbot")
	require.ErrorContains(t, err, "invalid redis url")

	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()
	_, err = ConnectRedis(context.Background(), "redis://"+addr, "")
	require.ErrorContains(t, err, "did not answer ping")
}
