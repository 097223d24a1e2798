package firehose

import (
	"bytes"
	"encoding/json"
	"fmt"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
)

func fromPost(p *appbsky.FeedPost) *Record {
	r := &Record{
		Type:      CollectionPost,
		Text:      p.Text,
		CreatedAt: p.CreatedAt,
		Langs:     BaseLangs(p.Langs),
		Tags:      p.Tags,
		HasFacets: p.Facets != nil,
	}
	if p.Reply != nil {
		r.HasReply = true
		if p.Reply.Parent != nil {
			r.ReplyParent = p.Reply.Parent.Uri
		}
		if p.Reply.Root != nil {
			r.ReplyRoot = p.Reply.Root.Uri
		}
	}
	if e := p.Embed; e != nil {
		r.HasEmbed = true
		switch {
		case e.EmbedRecord != nil && e.EmbedRecord.Record != nil:
			r.QuotedURI = e.EmbedRecord.Record.Uri
		case e.EmbedRecordWithMedia != nil && e.EmbedRecordWithMedia.Record != nil &&
			e.EmbedRecordWithMedia.Record.Record != nil:
			r.QuotedURI = e.EmbedRecordWithMedia.Record.Record.Uri
		}
	}
	return r
}

func fromLike(l *appbsky.FeedLike) *Record {
	r := &Record{Type: CollectionLike, CreatedAt: l.CreatedAt}
	if l.Subject != nil {
		r.SubjectURI = l.Subject.Uri
	}
	return r
}

func fromRepost(l *appbsky.FeedRepost) *Record {
	r := &Record{Type: CollectionRepost, CreatedAt: l.CreatedAt}
	if l.Subject != nil {
		r.SubjectURI = l.Subject.Uri
	}
	return r
}

// decodeCBORRecord decodes a DAG-CBOR record block for the collections feeds
// care about. Other collections yield (nil, nil).
func decodeCBORRecord(collection string, data []byte) (*Record, error) {
	switch collection {
	case CollectionPost:
		var p appbsky.FeedPost
		if err := p.UnmarshalCBOR(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("decode post: %w", err)
		}
		return fromPost(&p), nil
	case CollectionLike:
		var l appbsky.FeedLike
		if err := l.UnmarshalCBOR(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("decode like: %w", err)
		}
		return fromLike(&l), nil
	case CollectionRepost:
		var r appbsky.FeedRepost
		if err := r.UnmarshalCBOR(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("decode repost: %w", err)
		}
		return fromRepost(&r), nil
	default:
		return nil, nil
	}
}

// decodeJSONRecord is the JSON counterpart of decodeCBORRecord.
func decodeJSONRecord(collection string, data json.RawMessage) (*Record, error) {
	switch collection {
	case CollectionPost:
		var p appbsky.FeedPost
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode post: %w", err)
		}
		return fromPost(&p), nil
	case CollectionLike:
		var l appbsky.FeedLike
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("decode like: %w", err)
		}
		return fromLike(&l), nil
	case CollectionRepost:
		var r appbsky.FeedRepost
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode repost: %w", err)
		}
		return fromRepost(&r), nil
	default:
		return nil, nil
	}
}
