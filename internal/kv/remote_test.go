package kv

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisBackend(t *testing.T) func(*testing.T) backend {
	t.Helper()
	mr := miniredis.RunT(t)

	return func(t *testing.T) backend {
		r := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		t.Cleanup(func() { _ = r.Close() })
		return r
	}
}

func natsBackend(t *testing.T) func(*testing.T) backend {
	t.Helper()

	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	srv := natsserver.RunServer(&opts)
	t.Cleanup(srv.Shutdown)

	return func(t *testing.T) backend {
		n, err := OpenNATS(context.Background(), srv.ClientURL(), "MCPOLICE_TEST")
		require.NoError(t, err)
		t.Cleanup(func() { _ = n.Close() })
		return n
	}
}

// postgresBackend returns nil unless MCPOLICE_TEST_POSTGRES_DSN is set. Each
// call gets its own table, dropped when t ends.
func postgresBackend(t *testing.T) func(*testing.T) backend {
	t.Helper()

	dsn := os.Getenv("MCPOLICE_TEST_POSTGRES_DSN")
	if dsn == "" {
		return nil
	}
	table := fmt.Sprintf("kv_test_%d", time.Now().UnixNano())

	t.Cleanup(func() {
		ctx := context.Background()
		p, err := OpenPostgres(ctx, dsn, table)
		if err != nil {
			t.Logf("drop %s: %v", table, err)
			return
		}
		defer p.Close()
		if _, err := p.pool.Exec(ctx, `DROP TABLE IF EXISTS `+p.table); err != nil {
			t.Logf("drop %s: %v", table, err)
		}
	})

	return func(t *testing.T) backend {
		p, err := OpenPostgres(context.Background(), dsn, table)
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close() })
		return p
	}
}

// TestBackends_UpdateRetriesInterleavedWrite has another client write the key
// while fn runs, so the first attempt must lose and Update must retry against
// the new value.
func TestBackends_UpdateRetriesInterleavedWrite(t *testing.T) {
	ctx := context.Background()

	type interleaveCase struct {
		name   string
		open   func(*testing.T) backend
		seeded bool
	}
	cases := []interleaveCase{
		{"redis existing key", redisBackend(t), true},
		{"redis new key", redisBackend(t), false},
		{"nats existing key", natsBackend(t), true},
		{"nats new key", natsBackend(t), false},
	}
	// A row lock would block the interleaved write on an existing key
	if open := postgresBackend(t); open != nil {
		cases = append(cases, interleaveCase{"postgres new key", open, false})
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, other := tc.open(t), tc.open(t)
			if tc.seeded {
				require.NoError(t, s.Put(ctx, "violation_list", []byte("1")))
			}

			calls := 0
			err := s.Update(ctx, "violation_list", func(current []byte, exists bool) ([]byte, error) {
				calls++
				if calls == 1 {
					require.NoError(t, other.Put(ctx, "violation_list", []byte("10")))
				}
				if !exists {
					return []byte("1"), nil
				}
				return []byte(string(current) + "0"), nil
			})
			require.NoError(t, err)
			assert.Equal(t, 2, calls)

			got, err := other.Get(ctx, "violation_list")
			require.NoError(t, err)
			assert.Equal(t, "100", string(got))
		})
	}
}

func TestBackoff_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, backoff(ctx, 1000), context.Canceled)
	assert.NoError(t, backoff(context.Background(), 0))
}
