// Package docstore provides a collection-scoped document database on top of
// NATS JetStream key-value buckets.
//
// Each collection maps to one KV bucket. Documents are JSON objects keyed by
// a server-assigned id. The package supports create (assigns id), partial
// update by id, delete by id, equality-filter queries, and live subscriptions
// that emit a full result snapshot on every change.
//
// Subscriptions follow a snapshot model rather than a delta model: consumers
// always receive the complete matching result set, so applying a snapshot is
// a wholesale replacement of local state.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskd/internal/logging"
)

// Sentinel errors for document operations.
var (
	// ErrNotFound is returned when a document id does not exist in a collection.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidDocument indicates a value that does not marshal to a JSON object.
	ErrInvalidDocument = errors.New("document must be a JSON object")
)

// Doc is a stored document: its collection-unique id and raw JSON body.
// The body always contains an "id" field equal to ID.
type Doc struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into out.
func (d Doc) Decode(out any) error {
	return json.Unmarshal(d.Data, out)
}

// Filter is an equality condition on a top-level document field.
// Equality is compared on the JSON-decoded representation of the field.
type Filter struct {
	Field  string
	Equals any
}

func (f Filter) matches(fields map[string]any) bool {
	got, ok := fields[f.Field]
	if !ok {
		return f.Equals == nil
	}
	return fmt.Sprint(got) == fmt.Sprint(f.Equals)
}

// Client wraps a NATS connection with JetStream document collections.
type Client struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	log *logging.Logger
}

// New creates a document store client over an established NATS connection.
//
// The connection is owned by the caller and is not closed by the client.
func New(nc *nats.Conn, log *logging.Logger) (*Client, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return &Client{nc: nc, js: js, log: log.Named("docstore")}, nil
}

// Collection opens (creating if needed) the named collection.
func (c *Client) Collection(ctx context.Context, name string) (*Collection, error) {
	kv, err := c.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  name,
		History: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", name, err)
	}
	return &Collection{name: name, kv: kv, log: c.log.With(zap.String("collection", name))}, nil
}
