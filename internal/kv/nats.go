package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATS stores values in a JetStream key/value bucket. Update uses the entry
// revision for compare-and-swap, so it is safe across processes.
type NATS struct {
	conn   *nats.Conn
	bucket jetstream.KeyValue
}

// OpenNATS connects to url and opens (or creates) the named bucket
func OpenNATS(ctx context.Context, url, bucket string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("mcpolice"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}

	return &NATS{conn: nc, bucket: kv}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "mcpolice violation records and index",
		History:     1,
	})
}

// natsKey maps a store key onto the JetStream key alphabet, which has no ':'
func natsKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}

// Get retrieves a value
func (n *NATS) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := n.bucket.Get(ctx, natsKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("nats get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Put stores a value
func (n *NATS) Put(ctx context.Context, key string, value []byte) error {
	if _, err := n.bucket.Put(ctx, natsKey(key), value); err != nil {
		return fmt.Errorf("nats put %s: %w", key, err)
	}
	return nil
}

// Delete places a delete marker for key
func (n *NATS) Delete(ctx context.Context, key string) error {
	err := n.bucket.Delete(ctx, natsKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("nats delete %s: %w", key, err)
	}
	return nil
}

// Update retries fn until its write lands on the revision it read
func (n *NATS) Update(ctx context.Context, key string, fn UpdateFunc) error {
	k := natsKey(key)

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var (
			current  []byte
			revision uint64
			exists   bool
		)

		entry, err := n.bucket.Get(ctx, k)
		switch {
		case err == nil:
			current, revision, exists = entry.Value(), entry.Revision(), true
		case errors.Is(err, jetstream.ErrKeyNotFound):
		default:
			return fmt.Errorf("nats get %s: %w", key, err)
		}

		next, err := fn(current, exists)
		if err != nil {
			return err
		}

		if exists {
			_, err = n.bucket.Update(ctx, k, next, revision)
		} else {
			_, err = n.bucket.Create(ctx, k, next)
		}
		if err == nil {
			return nil
		}
		if !isRevisionConflict(err) {
			return fmt.Errorf("nats update %s: %w", key, err)
		}
		if err := backoff(ctx, attempt); err != nil {
			return err
		}
	}

	return ErrConflict
}

func isRevisionConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// Close drops the NATS connection
func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}
