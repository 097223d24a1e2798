package feedstore

import (
	"errors"
	"io"

	"github.com/cockroachdb/pebble"
)

// source is satisfied by *pebble.Snapshot and indexed *pebble.Batch.
type source interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

// Reader is the read surface shared by snapshots and open transactions.
type Reader interface {
	Get(uri string) (Item, bool, error)
	Has(uri string) (bool, error)
	// Scan visits every item in key order until fn returns false.
	Scan(fn func(Item) bool) error
	// ScanNewest visits items newest-created first until fn returns false.
	ScanNewest(fn func(Item) bool) error
	// ScanTag visits items indexed under tag, newest first.
	ScanTag(tag string, fn func(Item) bool) error
}

type reads struct {
	src source
}

func (r reads) Get(uri string) (Item, bool, error) {
	v, closer, err := r.src.Get(keyItem(uri))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Item{}, false, nil
		}
		return Item{}, false, err
	}
	defer closer.Close()
	it, err := decodeItem(v)
	if err != nil {
		return Item{}, false, err
	}
	return it, true, nil
}

func (r reads) Has(uri string) (bool, error) {
	_, closer, err := r.src.Get(keyItem(uri))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	closer.Close()
	return true, nil
}

func (r reads) Scan(fn func(Item) bool) error {
	iter, err := r.src.NewIter(&pebble.IterOptions{LowerBound: itemPrefix, UpperBound: prefixUpperBound(itemPrefix)})
	if err != nil {
		return err
	}
	defer iter.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		it, err := decodeItem(iter.Value())
		if err != nil {
			return err
		}
		if !fn(it) {
			break
		}
	}
	return iter.Error()
}

func (r reads) ScanNewest(fn func(Item) bool) error {
	return r.scanIndexDesc(createdPrefix, fn)
}

func (r reads) ScanTag(tag string, fn func(Item) bool) error {
	return r.scanIndexDesc(tagBase(tag), fn)
}

func (r reads) scanIndexDesc(prefix []byte, fn func(Item) bool) error {
	iter, err := r.src.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return err
	}
	defer iter.Close()
	for ok := iter.Last(); ok; ok = iter.Prev() {
		uri := uriFromIndexKey(iter.Key(), len(prefix))
		it, found, err := r.Get(uri)
		if err != nil {
			return err
		}
		if !found {
			// dangling index entry; the item was removed in this view
			continue
		}
		if !fn(it) {
			break
		}
	}
	return iter.Error()
}
