package log

import "time"

// Field is a single structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a field from an arbitrary value.
func F(key string, value interface{}) Field { return Field{Key: key, Value: value} }

func Str(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field         { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field     { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field   { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

// Dur renders durations in their human string form.
func Dur(key string, value time.Duration) Field { return Field{Key: key, Value: value.String()} }

// Err stores the error message under "error". A nil error yields an empty value.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Component tags a logger with the owning component.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }

// Feed tags a logger with a feed name.
func Feed(name string) Field { return Field{Key: FeedKey, Value: name} }

// Seq records a stream sequence number.
func Seq(seq uint64) Field { return Field{Key: SeqKey, Value: seq} }
