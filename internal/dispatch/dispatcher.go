package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rzbill/feedgen/internal/firehose"
	logpkg "github.com/rzbill/feedgen/pkg/log"
)

// Target consumes routed ops. Errors are persistence failures and stop
// ingestion.
type Target interface {
	Ingest(ctx context.Context, c firehose.Commit, op firehose.RepoOp) error
}

// Definition binds a predicate to a target under a unique name.
type Definition struct {
	Name   string
	Match  Predicate
	Target Target
}

// Dispatcher fans create ops out to every definition whose predicate
// matches. Definitions are fixed at construction.
type Dispatcher struct {
	defs    []Definition
	counter Counter
	logger  logpkg.Logger
}

// New validates defs. Names must be unique and targets non-nil.
func New(defs []Definition, counter Counter, logger logpkg.Logger) (*Dispatcher, error) {
	seen := make(map[string]struct{}, len(defs))
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, errors.New("dispatch: definition name is required")
		}
		if d.Target == nil {
			return nil, fmt.Errorf("dispatch: definition %q has no target", d.Name)
		}
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("dispatch: duplicate definition %q", d.Name)
		}
		seen[d.Name] = struct{}{}
		if d.Match == nil {
			d.Match = All()
		}
		out = append(out, d)
	}
	if counter == nil {
		counter = NoopCounter{}
	}
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	return &Dispatcher{defs: out, counter: counter, logger: logger.With(logpkg.Component("dispatch"))}, nil
}

// Names lists the definitions in registration order.
func (d *Dispatcher) Names() []string {
	out := make([]string, len(d.defs))
	for i, def := range d.defs {
		out[i] = def.Name
	}
	return out
}

// Dispatch routes every create op of c. Counter failures are logged, target
// failures are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, c firehose.Commit) error {
	for _, op := range c.Ops {
		if op.Action != firehose.ActionCreate {
			continue
		}
		if err := d.counter.Incr(ctx, op.Collection); err != nil {
			d.logger.Warn("counter increment failed", logpkg.Err(err))
		}
		for _, def := range d.defs {
			if !def.Match.Match(c, op) {
				continue
			}
			if err := def.Target.Ingest(ctx, c, op); err != nil {
				return fmt.Errorf("%s: ingest %s: %w", def.Name, op.Path, err)
			}
		}
	}
	return nil
}

// Flush pushes buffered counters.
func (d *Dispatcher) Flush(ctx context.Context) error {
	return d.counter.Flush(ctx)
}
