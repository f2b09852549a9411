package dump

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	shared "github.com/pulseloop/server/pkg"
)

// ErrKeyCollision means an object's derived hash key equals the store's own
// enumeration key. Writing it would silently corrupt the index, so the write
// is rejected before touching storage.
var ErrKeyCollision = errors.New("dump: hash key collides with enumeration key")

const membersField = "members"

// FirestoreDump persists failed objects as documents keyed `<prefix>:<id>`,
// each field JSON-encoded, and records membership in the enumeration document
// `<prefix>:all`. Both writes land in one batch.
type FirestoreDump struct {
	client *firestore.Client
	prefix string
	setKey string
}

func NewFirestoreDump(client *firestore.Client, prefix string) *FirestoreDump {
	return &FirestoreDump{
		client: client,
		prefix: prefix,
		setKey: prefix + ":all",
	}
}

func (d *FirestoreDump) Dump(ctx context.Context, obj shared.Dumpable) error {
	hashKey := d.hashKey(obj.DumpID())
	if hashKey == d.setKey {
		return fmt.Errorf("%w: %q", ErrKeyCollision, hashKey)
	}

	fields := map[string]interface{}{}
	for k, v := range obj.DumpFields() {
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("dump encode field %q: %w", k, err)
		}
		fields[k] = string(encoded)
	}

	col := d.client.Collection(shared.CollectionDumps)
	batch := d.client.Batch()
	batch.Set(col.Doc(hashKey), fields)
	batch.Set(col.Doc(d.setKey), map[string]interface{}{
		membersField: firestore.ArrayUnion(hashKey),
	}, firestore.MergeAll)
	_, err := batch.Commit(ctx)
	return err
}

// ListKeys returns every hash key recorded in the enumeration document.
func (d *FirestoreDump) ListKeys(ctx context.Context) ([]string, error) {
	snap, err := d.client.Collection(shared.CollectionDumps).Doc(d.setKey).Get(ctx)
	if err != nil {
		return nil, err
	}
	raw, ok := snap.Data()[membersField].([]interface{})
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			keys = append(keys, s)
		}
	}
	return keys, nil
}

// Get loads one dumped record by its object id.
func (d *FirestoreDump) Get(ctx context.Context, id string) (map[string]string, error) {
	snap, err := d.client.Collection(shared.CollectionDumps).Doc(d.hashKey(id)).Get(ctx)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	for k, v := range snap.Data() {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return fields, nil
}

func (d *FirestoreDump) hashKey(id string) string {
	return d.prefix + ":" + id
}
