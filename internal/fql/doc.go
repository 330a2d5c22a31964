// Package fql parses and generates FQL, the subscription language that
// decides which destination actions fire for an inbound analytics event.
//
// A subscription such as
//
//	type = "track" and event = "Order Completed"
//
// is parsed once into a Group tree of Condition leaves and evaluated many
// times. Generate is the inverse of Parse: for any string already in
// canonical form,
//
//	Generate(Parse(s)) == s
//
// AST:
//
// Node is a sealed interface implemented by *Group and *Condition only, so
// type switches in the parser, generator and evaluators are exhaustive.
// Condition values are the sealed Value types String, Number and Bool.
//
// The root of every successful parse is a *Group, even for a single
// condition (an "and" group with one child).
//
// Errors:
//
// Parse never panics. Every lexer and parser failure is returned as a
// *ParseError; callers treat all of them uniformly through err != nil.
// Generate reports ASTs that break the node invariants as *GenerateError.
//
// Parse and Generate share no state and are safe for concurrent use.
package fql
