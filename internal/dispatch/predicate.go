package dispatch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/rzbill/feedgen/internal/firehose"
)

// Predicate decides whether an op is routed to a feed.
type Predicate interface {
	Match(c firehose.Commit, op firehose.RepoOp) bool
}

// PredicateFunc adapts a plain function to Predicate.
type PredicateFunc func(c firehose.Commit, op firehose.RepoOp) bool

func (f PredicateFunc) Match(c firehose.Commit, op firehose.RepoOp) bool { return f(c, op) }

// Collections matches ops whose collection is in the allow-list. An entry
// ending in ".*" matches every collection under that prefix.
func Collections(names ...string) Predicate {
	exact := make(map[string]struct{}, len(names))
	var prefixes []string
	for _, n := range names {
		if strings.HasSuffix(n, ".*") {
			prefixes = append(prefixes, strings.TrimSuffix(n, "*"))
			continue
		}
		exact[n] = struct{}{}
	}
	return PredicateFunc(func(_ firehose.Commit, op firehose.RepoOp) bool {
		if _, ok := exact[op.Collection]; ok {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(op.Collection, p) {
				return true
			}
		}
		return false
	})
}

// TextRegex matches records whose text matches re.
func TextRegex(re *regexp.Regexp) Predicate {
	return PredicateFunc(func(_ firehose.Commit, op firehose.RepoOp) bool {
		return op.Record != nil && re.MatchString(op.Record.Text)
	})
}

// Repo matches commits authored by one of the given DIDs.
func Repo(dids ...string) Predicate {
	set := make(map[string]struct{}, len(dids))
	for _, d := range dids {
		set[d] = struct{}{}
	}
	return PredicateFunc(func(c firehose.Commit, _ firehose.RepoOp) bool {
		_, ok := set[c.Repo]
		return ok
	})
}

// All is the conjunction of preds. Nil entries are ignored; an empty All
// matches everything.
func All(preds ...Predicate) Predicate {
	var keep []Predicate
	for _, p := range preds {
		if p != nil {
			keep = append(keep, p)
		}
	}
	return PredicateFunc(func(c firehose.Commit, op firehose.RepoOp) bool {
		for _, p := range keep {
			if !p.Match(c, op) {
				return false
			}
		}
		return true
	})
}

// celPredicate evaluates a compiled CEL program against each op.
type celPredicate struct {
	prog cel.Program
}

// CEL compiles a boolean expression over repo, collection, action, text,
// langs, tags, and record (a map of the normalized record fields). An empty
// expression matches everything.
func CEL(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return All(), nil
	}
	env, err := cel.NewEnv(
		cel.Variable("repo", cel.StringType),
		cel.Variable("collection", cel.StringType),
		cel.Variable("action", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("langs", cel.ListType(cel.StringType)),
		cel.Variable("tags", cel.ListType(cel.StringType)),
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("parse %q: %w", expr, iss.Err())
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return nil, fmt.Errorf("check %q: %w", expr, iss2.Err())
	}
	if !checked.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q must evaluate to bool, got %s", expr, checked.OutputType())
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return celPredicate{prog: prog}, nil
}

func (p celPredicate) Match(c firehose.Commit, op firehose.RepoOp) bool {
	vars := map[string]any{
		"repo":       c.Repo,
		"collection": op.Collection,
		"action":     string(op.Action),
		"text":       "",
		"langs":      []string{},
		"tags":       []string{},
		"record":     map[string]any{},
	}
	if r := op.Record; r != nil {
		vars["text"] = r.Text
		if r.Langs != nil {
			vars["langs"] = r.Langs
		}
		if r.Tags != nil {
			vars["tags"] = r.Tags
		}
		vars["record"] = map[string]any{
			"type":         r.Type,
			"text":         r.Text,
			"created_at":   r.CreatedAt,
			"has_reply":    r.HasReply,
			"reply_parent": r.ReplyParent,
			"reply_root":   r.ReplyRoot,
			"has_embed":    r.HasEmbed,
			"quoted_uri":   r.QuotedURI,
			"has_facets":   r.HasFacets,
			"subject_uri":  r.SubjectURI,
		}
	}
	out, _, err := p.prog.Eval(vars)
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
