// Package engine evaluates FQL subscriptions against inbound events.
//
// Match is the evaluator: it walks a parsed *fql.Group and checks each
// condition against an *event.Event. Engine is a registry of subscriptions
// keyed by (destination, action) that routes events to every subscription
// they satisfy.
//
// Each subscribe string is parsed exactly once, at Register. A subscription
// whose FQL does not parse is kept in the registry disabled, so one bad
// destination configuration never stops the pipeline.
//
// Routing can be synchronous (Route) or queued (Enqueue plus a single Run
// loop that hands deliveries to a Sink). Every routed event is stamped with
// a sequence number from Clock; every delivery gets a UUIDv7 ID.
package engine
