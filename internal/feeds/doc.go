// Package feeds implements the scored feeds built from the event stream.
//
// Every feed satisfies Feed. Stored feeds are a Processor driven by a
// Strategy: decay and refcount rank by an exponentially decayed counter,
// view ranks another feed's store, recency and pattern keep the newest
// posts passing a filter, ratio ranks by a reply-to-approval ratio, and
// tagindex serves posts by hashtag through a route parameter. Delegate
// feeds keep no state and forward to the AppView.
//
// A RouteTable maps feed URIs to feeds. It is built once at startup and
// rejects patterns that could match the same URI.
package feeds
