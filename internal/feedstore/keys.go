package feedstore

import (
	"encoding/binary"
	"time"
)

// Keyspace (byte-wise, lexicographically sortable):
// - i/{uri}                        item record
// - c/{created_be8}{uri}           creation index, empty value
// - g/{tag}\x00{created_be8}{uri}  tag index, empty value
//
// created_be8 is the creation instant in unix microseconds.

var (
	itemPrefix    = []byte("i/")
	createdPrefix = []byte("c/")
	tagPrefix     = []byte("g/")
	tagTerminator = byte(0x00)

	// keyspaceStart and keyspaceEnd bound every key above.
	keyspaceStart = []byte("c/")
	keyspaceEnd   = []byte("j")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func micros(t time.Time) uint64 {
	us := t.UnixMicro()
	if us < 0 {
		return 0
	}
	return uint64(us)
}

func keyItem(uri string) []byte {
	k := make([]byte, 0, len(itemPrefix)+len(uri))
	k = append(k, itemPrefix...)
	return append(k, uri...)
}

func keyCreated(created time.Time, uri string) []byte {
	k := make([]byte, 0, len(createdPrefix)+8+len(uri))
	k = append(k, createdPrefix...)
	k = appendBE8(k, micros(created))
	return append(k, uri...)
}

// keyCreatedBound returns the creation index key that sorts before every
// entry created at or after t.
func keyCreatedBound(t time.Time) []byte {
	k := make([]byte, 0, len(createdPrefix)+8)
	k = append(k, createdPrefix...)
	return appendBE8(k, micros(t))
}

func tagBase(tag string) []byte {
	k := make([]byte, 0, len(tagPrefix)+len(tag)+1)
	k = append(k, tagPrefix...)
	k = append(k, tag...)
	return append(k, tagTerminator)
}

func keyTag(tag string, created time.Time, uri string) []byte {
	k := tagBase(tag)
	k = appendBE8(k, micros(created))
	return append(k, uri...)
}

// uriFromIndexKey extracts the URI suffix from a creation or tag index key
// whose fixed prefix length is baseLen.
func uriFromIndexKey(key []byte, baseLen int) string {
	if len(key) < baseLen+8 {
		return ""
	}
	return string(key[baseLen+8:])
}

// prefixUpperBound returns the smallest key greater than every key with prefix p.
func prefixUpperBound(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
