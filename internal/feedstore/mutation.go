package feedstore

import (
	"fmt"
	"time"
)

// MutationKind enumerates the write operations a feed can issue.
type MutationKind uint8

const (
	// KindIncrement adds Deltas to the item's counters, creating the item
	// when Create is set and it does not exist yet.
	KindIncrement MutationKind = iota + 1
	// KindInsert creates the item if absent; an existing item is left untouched.
	KindInsert
	// KindRemove deletes the item and its index entries.
	KindRemove
)

func (k MutationKind) String() string {
	switch k {
	case KindIncrement:
		return "increment"
	case KindInsert:
		return "insert"
	case KindRemove:
		return "remove"
	default:
		return fmt.Sprintf("mutation(%d)", uint8(k))
	}
}

// Mutation is a single idempotent-or-additive write against one item.
type Mutation struct {
	Kind MutationKind
	URI  string
	// At is the creation instant for new items and the update instant otherwise.
	At     time.Time
	Deltas []float64
	Langs  []string
	Tags   []string
	Create bool
}

// Increment builds an upserting counter mutation.
func Increment(uri string, at time.Time, deltas ...float64) Mutation {
	return Mutation{Kind: KindIncrement, URI: uri, At: at, Deltas: deltas, Create: true}
}

// Annotate merges language tags into an existing item without creating one.
func Annotate(uri string, at time.Time, langs []string) Mutation {
	return Mutation{Kind: KindIncrement, URI: uri, At: at, Langs: langs}
}

// Track creates an item with no counters, or merges langs into an
// existing one. The creation instant of an existing item is kept.
func Track(uri string, at time.Time, langs []string) Mutation {
	return Mutation{Kind: KindIncrement, URI: uri, At: at, Langs: langs, Create: true}
}

// Insert builds a put-if-absent mutation.
func Insert(uri string, at time.Time, langs, tags []string) Mutation {
	return Mutation{Kind: KindInsert, URI: uri, At: at, Langs: langs, Tags: tags}
}

// Remove builds a delete mutation.
func Remove(uri string) Mutation {
	return Mutation{Kind: KindRemove, URI: uri}
}

func (m Mutation) newItem() Item {
	it := Item{
		URI:       m.URI,
		CreatedAt: m.At.UTC(),
		UpdatedAt: m.At.UTC(),
		Langs:     union(nil, m.Langs),
		Tags:      union(nil, m.Tags),
	}
	if len(m.Deltas) > 0 {
		it.Counters = append([]float64(nil), m.Deltas...)
	}
	return it
}

// Apply executes m inside tx.
func (tx *Tx) Apply(m Mutation) error {
	if m.URI == "" {
		return fmt.Errorf("feedstore: %s with empty uri", m.Kind)
	}
	switch m.Kind {
	case KindIncrement:
		prev, ok, err := tx.Get(m.URI)
		if err != nil {
			return err
		}
		if !ok {
			if !m.Create {
				return nil
			}
			return tx.put(m.newItem(), nil)
		}
		next := prev
		next.Counters = append([]float64(nil), prev.Counters...)
		for i, d := range m.Deltas {
			if i >= len(next.Counters) {
				next.Counters = append(next.Counters, 0)
			}
			next.Counters[i] += d
		}
		next.Langs = union(append([]string(nil), prev.Langs...), m.Langs)
		next.Tags = union(append([]string(nil), prev.Tags...), m.Tags)
		if m.At.After(next.UpdatedAt) {
			next.UpdatedAt = m.At.UTC()
		}
		return tx.put(next, &prev)
	case KindInsert:
		ok, err := tx.Has(m.URI)
		if err != nil || ok {
			return err
		}
		return tx.put(m.newItem(), nil)
	case KindRemove:
		prev, ok, err := tx.Get(m.URI)
		if err != nil || !ok {
			return err
		}
		return tx.delete(prev)
	default:
		return fmt.Errorf("feedstore: unknown mutation kind %d", m.Kind)
	}
}
