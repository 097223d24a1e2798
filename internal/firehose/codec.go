package firehose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/bluesky-social/indigo/events"
	jsmodels "github.com/bluesky-social/jetstream/pkg/models"
	car "github.com/ipfs/go-car"
	"github.com/ipfs/go-cid"
)

// ErrSkipFrame marks frames that are valid but carry nothing to process.
var ErrSkipFrame = errors.New("firehose: skip frame")

// Codec turns one websocket message into a Commit.
type Codec interface {
	Decode(frame []byte) (Commit, error)
}

// RepoCodec decodes com.atproto.sync.subscribeRepos frames: a DAG-CBOR
// header followed by a DAG-CBOR body. Records are resolved from the CAR
// slice carried in the commit.
type RepoCodec struct{}

func (RepoCodec) Decode(frame []byte) (Commit, error) {
	r := bytes.NewReader(frame)
	var hdr events.EventHeader
	if err := hdr.UnmarshalCBOR(r); err != nil {
		return Commit{}, fmt.Errorf("decode header: %w", err)
	}
	switch hdr.Op {
	case events.EvtKindMessage:
	case events.EvtKindErrorFrame:
		var ef events.ErrorFrame
		if err := ef.UnmarshalCBOR(r); err != nil {
			return Commit{}, fmt.Errorf("decode error frame: %w", err)
		}
		return Commit{}, fmt.Errorf("upstream error frame: %s: %s", ef.Error, ef.Message)
	default:
		return Commit{}, ErrSkipFrame
	}
	if hdr.MsgType != "#commit" {
		return Commit{}, ErrSkipFrame
	}

	var evt comatproto.SyncSubscribeRepos_Commit
	if err := evt.UnmarshalCBOR(r); err != nil {
		return Commit{}, fmt.Errorf("decode commit: %w", err)
	}
	if evt.TooBig {
		return Commit{}, ErrSkipFrame
	}
	if evt.Seq < 0 {
		return Commit{}, fmt.Errorf("negative sequence %d", evt.Seq)
	}

	blocks, err := readBlocks(evt.Blocks)
	if err != nil {
		return Commit{}, err
	}

	c := Commit{
		Seq:  uint64(evt.Seq),
		Repo: evt.Repo,
		Time: parseEventTime(evt.Time),
		Ops:  make([]RepoOp, 0, len(evt.Ops)),
	}
	for _, op := range evt.Ops {
		if op == nil {
			continue
		}
		collection, rkey := SplitPath(op.Path)
		ro := RepoOp{
			Action:     Action(op.Action),
			Collection: collection,
			RKey:       rkey,
			Path:       op.Path,
		}
		if op.Cid != nil {
			id := cid.Cid(*op.Cid)
			ro.CID = id.String()
			if data, ok := blocks[id.KeyString()]; ok {
				// A bad record costs only its own op.
				ro.Record, ro.RecordErr = decodeCBORRecord(collection, data)
			}
		}
		c.Ops = append(c.Ops, ro)
	}
	return c, nil
}

func readBlocks(data []byte) (map[string][]byte, error) {
	out := make(map[string][]byte)
	if len(data) == 0 {
		return out, nil
	}
	cr, err := car.NewCarReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read car header: %w", err)
	}
	for {
		blk, err := cr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("read car block: %w", err)
		}
		out[blk.Cid().KeyString()] = blk.RawData()
	}
}

func parseEventTime(s string) time.Time {
	if dt, err := syntax.ParseDatetime(s); err == nil {
		return dt.Time()
	}
	return time.Time{}
}

// JetstreamCodec decodes JSON jetstream events. The event's time_us is used
// as the sequence, which is also what jetstream accepts as a cursor.
type JetstreamCodec struct{}

func (JetstreamCodec) Decode(frame []byte) (Commit, error) {
	var evt jsmodels.Event
	if err := json.Unmarshal(frame, &evt); err != nil {
		return Commit{}, fmt.Errorf("decode event: %w", err)
	}
	if evt.Kind != jsmodels.EventKindCommit || evt.Commit == nil {
		return Commit{}, ErrSkipFrame
	}
	if evt.TimeUS <= 0 {
		return Commit{}, fmt.Errorf("invalid time_us %d", evt.TimeUS)
	}
	jc := evt.Commit
	op := RepoOp{
		Collection: jc.Collection,
		RKey:       jc.RKey,
		Path:       jc.Collection + "/" + jc.RKey,
		CID:        jc.CID,
	}
	switch jc.Operation {
	case jsmodels.CommitOperationCreate:
		op.Action = ActionCreate
	case jsmodels.CommitOperationUpdate:
		op.Action = ActionUpdate
	case jsmodels.CommitOperationDelete:
		op.Action = ActionDelete
	default:
		return Commit{}, fmt.Errorf("unknown operation %q", jc.Operation)
	}
	if len(jc.Record) > 0 && op.Action != ActionDelete {
		op.Record, op.RecordErr = decodeJSONRecord(jc.Collection, jc.Record)
	}
	return Commit{
		Seq:  uint64(evt.TimeUS),
		Repo: evt.Did,
		Time: time.UnixMicro(evt.TimeUS).UTC(),
		Ops:  []RepoOp{op},
	}, nil
}
