package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskd/internal/logging"
)

// Collection is a named set of JSON documents backed by one KV bucket.
type Collection struct {
	name string
	kv   jetstream.KeyValue
	log  *logging.Logger
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Create stores a new document and returns its server-assigned id.
//
// The value must marshal to a JSON object. The assigned id is written into
// the stored document under the "id" field, overwriting any caller value.
func (c *Collection) Create(ctx context.Context, doc any) (string, error) {
	fields, err := toFields(doc)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	fields["id"] = id

	if err := c.put(ctx, id, fields); err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}

	c.log.Debug(ctx, "document created", zap.String("id", id))
	return id, nil
}

// Set stores a document under a caller-chosen id, replacing any existing
// document with that id. The stored "id" field is forced to match.
func (c *Collection) Set(ctx context.Context, id string, doc any) error {
	fields, err := toFields(doc)
	if err != nil {
		return err
	}
	fields["id"] = id

	if err := c.put(ctx, id, fields); err != nil {
		return fmt.Errorf("set document %s: %w", id, err)
	}
	return nil
}

// Get retrieves a document by id.
//
// Returns ErrNotFound if no document with that id exists.
func (c *Collection) Get(ctx context.Context, id string) (Doc, error) {
	entry, err := c.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return Doc{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Doc{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return Doc{ID: id, Data: append(json.RawMessage(nil), entry.Value()...)}, nil
}

// Update applies a partial patch to a document by id.
//
// Only the supplied fields change; omitted fields keep their stored values.
// A field mapped to nil is written as JSON null, which is how optional
// timestamps are cleared. Returns ErrNotFound if the document does not exist.
func (c *Collection) Update(ctx context.Context, id string, patch map[string]any) error {
	doc, err := c.Get(ctx, id)
	if err != nil {
		return err
	}

	fields := map[string]any{}
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		return fmt.Errorf("decode document %s: %w", id, err)
	}
	for k, v := range patch {
		fields[k] = v
	}
	fields["id"] = id

	if err := c.put(ctx, id, fields); err != nil {
		return fmt.Errorf("update document %s: %w", id, err)
	}

	c.log.Debug(ctx, "document updated", zap.String("id", id), zap.Int("fields", len(patch)))
	return nil
}

// Delete removes a document by id. Deleting an absent id is not an error.
func (c *Collection) Delete(ctx context.Context, id string) error {
	if err := c.kv.Delete(ctx, id); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	c.log.Debug(ctx, "document deleted", zap.String("id", id))
	return nil
}

// Find returns all documents matching every filter, ordered by id.
//
// With no filters it returns the full collection.
func (c *Collection) Find(ctx context.Context, filters ...Filter) ([]Doc, error) {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list collection %q: %w", c.name, err)
	}
	sort.Strings(keys)

	var docs []Doc
	for _, key := range keys {
		entry, err := c.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue // deleted between Keys and Get
			}
			return nil, fmt.Errorf("get document %s: %w", key, err)
		}
		data := append(json.RawMessage(nil), entry.Value()...)
		ok, err := matchesFilters(data, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, Doc{ID: key, Data: data})
		}
	}
	return docs, nil
}

func (c *Collection) put(ctx context.Context, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := c.kv.Put(ctx, id, data); err != nil {
		return err
	}
	return nil
}

// toFields marshals a value and decodes it back into a field map so documents
// of any struct type can be stored and patched uniformly.
func toFields(doc any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return fields, nil
}

func matchesFilters(data json.RawMessage, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	for _, f := range filters {
		if !f.matches(fields) {
			return false, nil
		}
	}
	return true, nil
}
