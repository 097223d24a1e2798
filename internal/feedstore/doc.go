// Package feedstore persists the scored items of a single feed in its own
// Pebble database.
//
// Writes go through a Tx (an indexed batch that reads its own writes) and
// become durable on Commit, which syncs the WAL and periodically flushes the
// memtable. Readers use snapshot-backed Views so serving never observes a
// half-applied batch. Each item keeps a creation index, used for recency
// ordering and age-based eviction, and optional tag indexes.
//
//	st, _ := feedstore.Open("rapidfire", pebblestore.Options{DataDir: dir}, feedstore.Options{})
//	tx := st.Begin()
//	_ = tx.Apply(feedstore.Insert(uri, createdAt, []string{"en"}, nil))
//	_, _ = tx.EvictCreatedBefore(time.Now().Add(-15 * time.Minute))
//	_ = tx.Commit(ctx)
package feedstore
