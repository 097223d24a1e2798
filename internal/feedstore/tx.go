package feedstore

import (
	"context"
	"time"

	"github.com/cockroachdb/pebble"
)

// Tx accumulates writes in an indexed batch and reads its own writes.
// After Commit the Tx is reset and may be reused.
type Tx struct {
	reads
	store   *Store
	batch   *pebble.Batch
	pending int
	deletes int
}

// Pending returns the number of writes since the last commit.
func (tx *Tx) Pending() int { return tx.pending }

func (tx *Tx) put(it Item, prev *Item) error {
	if err := tx.batch.Set(keyItem(it.URI), encodeItem(it), nil); err != nil {
		return err
	}
	indexChanged := prev == nil || !prev.CreatedAt.Equal(it.CreatedAt) || !sameStrings(prev.Tags, it.Tags)
	if indexChanged {
		if prev != nil {
			if err := tx.deleteIndexes(*prev); err != nil {
				return err
			}
		}
		if err := tx.batch.Set(keyCreated(it.CreatedAt, it.URI), nil, nil); err != nil {
			return err
		}
		for _, tag := range it.Tags {
			if err := tx.batch.Set(keyTag(tag, it.CreatedAt, it.URI), nil, nil); err != nil {
				return err
			}
		}
	}
	tx.pending++
	return nil
}

func (tx *Tx) delete(it Item) error {
	if err := tx.batch.Delete(keyItem(it.URI), nil); err != nil {
		return err
	}
	if err := tx.deleteIndexes(it); err != nil {
		return err
	}
	tx.pending++
	tx.deletes++
	return nil
}

func (tx *Tx) deleteIndexes(it Item) error {
	if err := tx.batch.Delete(keyCreated(it.CreatedAt, it.URI), nil); err != nil {
		return err
	}
	for _, tag := range it.Tags {
		if err := tx.batch.Delete(keyTag(tag, it.CreatedAt, it.URI), nil); err != nil {
			return err
		}
	}
	return nil
}

// EvictWhere deletes every item for which keep returns false. Victims are
// collected first and deleted after the scan completes.
func (tx *Tx) EvictWhere(keep func(Item) bool) (int, error) {
	var victims []Item
	if err := tx.Scan(func(it Item) bool {
		if !keep(it) {
			victims = append(victims, it)
		}
		return true
	}); err != nil {
		return 0, err
	}
	for _, it := range victims {
		if err := tx.delete(it); err != nil {
			return 0, err
		}
	}
	return len(victims), nil
}

// EvictCreatedBefore deletes items created strictly before cutoff by walking
// the creation index from the oldest entry, stopping at the first newer one.
func (tx *Tx) EvictCreatedBefore(cutoff time.Time) (int, error) {
	iter, err := tx.batch.NewIter(&pebble.IterOptions{
		LowerBound: createdPrefix,
		UpperBound: keyCreatedBound(cutoff),
	})
	if err != nil {
		return 0, err
	}
	var uris []string
	for ok := iter.First(); ok; ok = iter.Next() {
		uris = append(uris, uriFromIndexKey(iter.Key(), len(createdPrefix)))
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return 0, err
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}

	deleted := 0
	for _, uri := range uris {
		it, ok, err := tx.Get(uri)
		if err != nil {
			return deleted, err
		}
		if !ok {
			continue
		}
		if err := tx.delete(it); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// Commit durably applies the accumulated writes and starts a fresh batch.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.pending == 0 {
		return nil
	}
	if err := tx.store.commit(ctx, tx.batch, tx.deletes); err != nil {
		return err
	}
	tx.reset()
	return nil
}

// Discard drops uncommitted writes and releases the batch.
func (tx *Tx) Discard() {
	if tx.batch != nil {
		_ = tx.batch.Close()
		tx.batch = nil
	}
	tx.pending = 0
	tx.deletes = 0
}

func (tx *Tx) reset() {
	_ = tx.batch.Close()
	tx.batch = tx.store.db.NewIndexedBatch()
	tx.reads = reads{src: tx.batch}
	tx.pending = 0
	tx.deletes = 0
}
