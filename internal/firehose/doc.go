// Package firehose reads the network-wide repository event stream.
//
// A Reader dials the relay over websocket, decodes each frame with a Codec
// and hands the resulting Commit to a handler. Two codecs are provided:
// RepoCodec for the binary com.atproto.sync.subscribeRepos stream and
// JetstreamCodec for the JSON jetstream service. On disconnect the Reader
// backs off and resumes from the cursor the caller reports.
package firehose
