package firehose

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	logpkg "github.com/rzbill/feedgen/pkg/log"
)

// Conn is the receive side of a websocket connection.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens upstream connections.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebsocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, rawURL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", rawURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	conn.SetReadLimit(8 << 20)
	return conn, nil
}

// HandlerError wraps an error returned by the commit handler. It stops Run.
type HandlerError struct {
	Seq uint64
	Err error
}

func (e *HandlerError) Error() string { return fmt.Sprintf("handle seq %d: %v", e.Seq, e.Err) }
func (e *HandlerError) Unwrap() error { return e.Err }

// Options configures a Reader.
type Options struct {
	// URL is the subscription endpoint without a cursor parameter.
	URL     string
	Codec   Codec
	Dialer  Dialer
	Backoff Backoff
	Logger  logpkg.Logger
}

// Reader consumes an ordered event stream and reconnects on failure,
// resuming from the caller-provided cursor.
type Reader struct {
	opts   Options
	logger logpkg.Logger
}

// NewReader validates opts and fills defaults.
func NewReader(opts Options) (*Reader, error) {
	if opts.URL == "" {
		return nil, errors.New("firehose: URL is required")
	}
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("firehose: invalid URL: %w", err)
	}
	if opts.Codec == nil {
		opts.Codec = RepoCodec{}
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	return &Reader{opts: opts, logger: logger.With(logpkg.Component("firehose"))}, nil
}

// CursorFunc reports the resume position; ok is false on a cold start.
type CursorFunc func() (seq uint64, ok bool)

// HandleFunc processes one commit. A returned error is fatal for Run.
type HandleFunc func(ctx context.Context, c Commit) error

// Run receives until ctx is cancelled (returning nil), the handler fails
// (returning a *HandlerError) or reconnect attempts are exhausted.
func (r *Reader) Run(ctx context.Context, cursor CursorFunc, handle HandleFunc) error {
	var attempts uint32
	for {
		if ctx.Err() != nil {
			return nil
		}
		target := r.endpoint(cursor)
		conn, err := r.opts.Dialer.Dial(ctx, target)
		if err == nil {
			r.logger.Info("connected", logpkg.Str("url", target))
			err = r.consume(ctx, conn, handle, &attempts)
			var herr *HandlerError
			if errors.As(err, &herr) {
				return err
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		attempts++
		if r.opts.Backoff.MaxAttempts > 0 && attempts > r.opts.Backoff.MaxAttempts {
			return fmt.Errorf("firehose: giving up after %d attempts: %w", attempts-1, err)
		}
		delay := r.opts.Backoff.Delay(attempts)
		r.logger.Warn("stream interrupted; reconnecting",
			logpkg.Err(err),
			logpkg.Int("attempt", int(attempts)),
			logpkg.Dur("backoff", delay),
		)
		if !sleepCtx(ctx, delay) {
			return nil
		}
	}
}

func (r *Reader) endpoint(cursor CursorFunc) string {
	if cursor == nil {
		return r.opts.URL
	}
	seq, ok := cursor()
	if !ok {
		return r.opts.URL
	}
	u, err := url.Parse(r.opts.URL)
	if err != nil {
		return r.opts.URL
	}
	q := u.Query()
	q.Set("cursor", strconv.FormatUint(seq, 10))
	u.RawQuery = q.Encode()
	return u.String()
}

func (r *Reader) consume(ctx context.Context, conn Conn, handle HandleFunc, attempts *uint32) error {
	stop := make(chan struct{})
	var once sync.Once
	closeConn := func() { once.Do(func() { _ = conn.Close() }) }
	defer closeConn()
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-stop:
		}
	}()

	var last uint64
	lastLog := time.Now()
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c, err := r.opts.Codec.Decode(frame)
		if err != nil {
			if !errors.Is(err, ErrSkipFrame) {
				r.logger.Warn("skipping malformed frame", logpkg.Err(err), logpkg.Int("bytes", len(frame)))
			}
			continue
		}
		*attempts = 0
		for _, op := range c.Ops {
			if op.RecordErr != nil {
				r.logger.Debug("skipping undecodable record", logpkg.Seq(c.Seq), logpkg.Str("path", op.Path), logpkg.Err(op.RecordErr))
			}
		}
		// Cancellation is observed between frames only; a frame that has
		// started is handled to completion.
		if err := handle(context.WithoutCancel(ctx), c); err != nil {
			return &HandlerError{Seq: c.Seq, Err: err}
		}
		last = c.Seq
		if time.Since(lastLog) >= time.Minute {
			lastLog = time.Now()
			lag := time.Duration(0)
			if !c.Time.IsZero() {
				lag = time.Since(c.Time)
			}
			r.logger.Info("stream position", logpkg.Seq(last), logpkg.Dur("lag", lag))
		}
	}
}
