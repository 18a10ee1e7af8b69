package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type RedisServer struct {
	Server *miniredis.Miniredis
	Client *redis.Client
}

// Start in-memory redis server and client connected to it
// Both stopped automatically when test ends
func StartRedis(t *testing.T) RedisServer {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return RedisServer{Server: srv, Client: client}
}
