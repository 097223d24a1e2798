// Package dispatch routes decoded repository ops to feeds.
//
// Only create ops are routed. Each Definition pairs a Predicate with a
// Target; predicates can be combined with All and compiled from CEL
// expressions. A Counter observes every create op by collection.
package dispatch
