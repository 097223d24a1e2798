package controllers

// Common request/response types for HTTP controllers

// xrpcError is the error body of XRPC methods.
type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// skeletonItem is one entry of a feed skeleton.
type skeletonItem struct {
	Post string `json:"post"`
}

// skeletonResp is the app.bsky.feed.getFeedSkeleton output.
type skeletonResp struct {
	Cursor string         `json:"cursor,omitempty"`
	Feed   []skeletonItem `json:"feed"`
}

// describeFeed names one feed this generator serves.
type describeFeed struct {
	URI string `json:"uri"`
}

// describeResp is the app.bsky.feed.describeFeedGenerator output.
type describeResp struct {
	DID   string         `json:"did"`
	Feeds []describeFeed `json:"feeds"`
}

// didService is one service entry of a DID document.
type didService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// didDocument is the did:web document served at /.well-known/did.json.
type didDocument struct {
	Context []string     `json:"@context"`
	ID      string       `json:"id"`
	Service []didService `json:"service"`
}

// debugRowJSON is one ranked item of the debug view.
type debugRowJSON struct {
	URI       string    `json:"uri"`
	Score     float64   `json:"score"`
	CreatedAt string    `json:"created_at"`
	AgeSec    float64   `json:"age_sec"`
	Counters  []float64 `json:"counters,omitempty"`
	Langs     []string  `json:"langs,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// debugResp is the /debug/feed output.
type debugResp struct {
	Feed string         `json:"feed"`
	Kind string         `json:"kind,omitempty"`
	Rows []debugRowJSON `json:"rows"`
}

// feedInfoJSON describes one configured feed.
type feedInfoJSON struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	URI     string `json:"uri"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// checkpointResp is the /v1/checkpoint output.
type checkpointResp struct {
	Seq     uint64 `json:"seq"`
	Present bool   `json:"present"`
}
