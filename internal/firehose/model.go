package firehose

import (
	"strings"
	"time"
)

// Well-known record collections.
const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionLike   = "app.bsky.feed.like"
	CollectionRepost = "app.bsky.feed.repost"
)

// Action is the kind of change a RepoOp applies.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Commit is one decoded repository commit event.
type Commit struct {
	Seq  uint64
	Repo string
	Time time.Time
	Ops  []RepoOp
}

// URI returns the at:// URI of the record an op touches.
func (c Commit) URI(op RepoOp) string {
	return "at://" + c.Repo + "/" + op.Path
}

// RepoOp is a single record change inside a commit. Record is nil for
// deletes and for records the codec could not resolve or decode; in the
// latter case RecordErr says why.
type RepoOp struct {
	Action     Action
	Collection string
	RKey       string
	Path       string
	CID        string
	Record     *Record
	RecordErr  error
}

// Record is the normalized subset of post, like and repost records that
// feeds inspect.
type Record struct {
	Type      string
	Text      string
	CreatedAt string
	Langs     []string
	Tags      []string

	HasReply    bool
	ReplyParent string
	ReplyRoot   string

	HasEmbed  bool
	QuotedURI string

	HasFacets bool

	// SubjectURI is the target of a like or repost.
	SubjectURI string
}

// SplitPath splits "collection/rkey".
func SplitPath(path string) (collection, rkey string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return path, ""
	}
	return path[:i], path[i+1:]
}

// RepoFromURI extracts the authority (DID) of an at:// URI.
func RepoFromURI(uri string) string {
	rest := strings.TrimPrefix(uri, "at://")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}
