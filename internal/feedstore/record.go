package feedstore

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"
	"time"
)

// Item encoding:
// version(1) | uvarint created_us | uvarint updated_us | str uri |
// uvarint n, n*be8 float64 counters | strs langs | strs tags | crc32c(4)
//
// str is uvarint length followed by bytes; strs is uvarint count followed by strs.

const recordVersion = 1

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var errCorrupt = errors.New("feedstore: corrupt item record")

func encodeItem(it Item) []byte {
	out := make([]byte, 0, 32+len(it.URI)+8*len(it.Counters))
	out = append(out, recordVersion)
	out = binary.AppendUvarint(out, micros(it.CreatedAt))
	out = binary.AppendUvarint(out, micros(it.UpdatedAt))
	out = appendStr(out, it.URI)
	out = binary.AppendUvarint(out, uint64(len(it.Counters)))
	for _, c := range it.Counters {
		out = binary.BigEndian.AppendUint64(out, math.Float64bits(c))
	}
	out = appendStrs(out, it.Langs)
	out = appendStrs(out, it.Tags)
	return binary.BigEndian.AppendUint32(out, crc32.Checksum(out, castagnoli))
}

func decodeItem(b []byte) (Item, error) {
	if len(b) < 1+4 {
		return Item{}, errCorrupt
	}
	body := b[:len(b)-4]
	if crc32.Checksum(body, castagnoli) != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return Item{}, errCorrupt
	}
	if body[0] != recordVersion {
		return Item{}, errCorrupt
	}
	d := decoder{buf: body[1:]}
	var it Item
	it.CreatedAt = time.UnixMicro(int64(d.uvarint())).UTC()
	it.UpdatedAt = time.UnixMicro(int64(d.uvarint())).UTC()
	it.URI = d.str()
	n := d.uvarint()
	if d.err == nil && n > uint64(len(d.buf)/8) {
		return Item{}, errCorrupt
	}
	if n > 0 {
		it.Counters = make([]float64, n)
		for i := range it.Counters {
			it.Counters[i] = math.Float64frombits(d.be8())
		}
	}
	it.Langs = d.strs()
	it.Tags = d.strs()
	if d.err != nil || len(d.buf) != 0 {
		return Item{}, errCorrupt
	}
	return it, nil
}

func appendStr(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendStrs(dst []byte, ss []string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(ss)))
	for _, s := range ss {
		dst = appendStr(dst, s)
	}
	return dst
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.err = errCorrupt
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) be8() uint64 {
	if d.err != nil || len(d.buf) < 8 {
		d.err = errCorrupt
		return 0
	}
	v := binary.BigEndian.Uint64(d.buf)
	d.buf = d.buf[8:]
	return v
}

func (d *decoder) str() string {
	n := d.uvarint()
	if d.err != nil {
		return ""
	}
	if n > uint64(len(d.buf)) {
		d.err = errCorrupt
		return ""
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s
}

func (d *decoder) strs() []string {
	n := d.uvarint()
	if d.err != nil || n == 0 {
		return nil
	}
	if n > uint64(len(d.buf)) {
		d.err = errCorrupt
		return nil
	}
	out := make([]string, 0, n)
	for i := uint64(0); i < n && d.err == nil; i++ {
		out = append(out, d.str())
	}
	return out
}
