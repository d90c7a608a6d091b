package cursor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the JetStream KV bucket used when none is configured.
const DefaultBucket = "killfeed_cursors"

// NATS is a Store backed by a JetStream key-value bucket, so several
// service replicas can share cursors. Expiry is bucket-wide (MaxAge = TTL);
// every Set restarts a key's age, which matches the per-key refresh the
// feed needs because all keys share the same TTL.
type NATS struct {
	conn  *nats.Conn
	kv    jetstream.KeyValue
	owned bool
}

// DialNATS connects to url and opens (or creates) bucket.
func DialNATS(ctx context.Context, url, bucket string) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name("killfeed"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("cursor: nats connect: %w", err)
	}
	s, err := NewNATS(ctx, conn, bucket)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewNATS opens (or creates) bucket on an existing connection. The
// connection stays owned by the caller.
func NewNATS(ctx context.Context, conn *nats.Conn, bucket string) (*NATS, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("cursor: jetstream: %w", err)
	}
	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "killfeed queue cursors",
			TTL:         TTL,
			History:     1,
		})
		if errors.Is(err, jetstream.ErrBucketExists) {
			// lost a creation race with another replica
			kv, err = js.KeyValue(ctx, bucket)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("cursor: kv bucket %s: %w", bucket, err)
	}
	return &NATS{conn: conn, kv: kv}, nil
}

// natsKey maps an arbitrary key onto the KV key alphabet.
func natsKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func (n *NATS) Get(ctx context.Context, key string) (string, bool, error) {
	e, err := n.kv.Get(ctx, natsKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(e.Value()), true, nil
}

// Set writes value. ttl is ignored in favour of the bucket TTL.
func (n *NATS) Set(ctx context.Context, key, value string, _ time.Duration) error {
	_, err := n.kv.Put(ctx, natsKey(key), []byte(value))
	return err
}

func (n *NATS) Close() error {
	if n.owned {
		n.conn.Close()
	}
	return nil
}

// Ping reports whether the NATS connection is usable.
func (n *NATS) Ping(ctx context.Context) error {
	if !n.conn.IsConnected() {
		return fmt.Errorf("cursor: nats %s", n.conn.Status())
	}
	return n.conn.FlushWithContext(ctx)
}
