package configstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis_URLCarriesCredentialsAndDB(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	kv, err := NewRedis(RedisOptions{Addr: "redis://:secret@" + mr.Addr() + "/2", Prefix: "relay:"})
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(context.Background(), "k", []byte(`{}`)))

	mr.Select(2)
	assert.True(t, mr.Exists("relay:k"))
}

func TestNewRedis_WrongPassword(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	_, err := NewRedis(RedisOptions{Addr: "redis://:wrong@" + mr.Addr()})
	assert.Error(t, err)
}

func TestRedisClientOptions(t *testing.T) {
	tests := []struct {
		name     string
		opts     RedisOptions
		addr     string
		password string
		db       int
		tls      bool
	}{
		{"host and port", RedisOptions{Addr: "localhost:6379", Password: "p", DB: 1}, "localhost:6379", "p", 1, false},
		{"url", RedisOptions{Addr: "redis://:pw@cache:6380/3"}, "cache:6380", "pw", 3, false},
		{"tls url", RedisOptions{Addr: "rediss://cache:6380"}, "cache:6380", "", 0, true},
		{"explicit values override url", RedisOptions{Addr: "redis://:pw@cache:6380/3", Password: "other", DB: 5}, "cache:6380", "other", 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := redisClientOptions(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.addr, got.Addr)
			assert.Equal(t, tt.password, got.Password)
			assert.Equal(t, tt.db, got.DB)
			assert.Equal(t, tt.tls, got.TLSConfig != nil)
		})
	}

	_, err := redisClientOptions(RedisOptions{Addr: "redis://cache:6380/notadb"})
	assert.Error(t, err)
}
