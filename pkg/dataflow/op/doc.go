// Package op provides the stock operator kinds.
//
// Every constructor returns a dataflow.Operator; Register installs the
// kinds that can be built from parameters alone into a deploy.Kinds so that
// pipeline files can refer to them by name:
//
//	passthrough   forwards every event on out
//	split         emits each event on every port in "ports"
//	filter        forwards events matching the expression "when"
//	window        batches payloads by "size" and/or "every"
//	backpressure  diverts to overflow while downstream is backed up
//	roundrobin    rotates over "ports", skipping backed-up ones
//	log           logs each event and forwards it
//
// Func and Sink adapt Go code and sinks; RegisterFunc and RegisterSink
// make them available to pipeline files under a chosen name.
package op
