/*
Package config loads declarative pipeline descriptions and gives operator
factories type-safe access to their parameters.

# Pipeline files

A PipelineSpec names the nodes (id, operator kind, parameters), the links
between them, and the input and output nodes. It can be written in YAML,
JSON or HCL:

	name: orders
	inputs: [src]
	outputs: [sink]
	nodes:
	  - id: src
	    kind: passthrough
	  - id: big
	    kind: filter
	    config:
	      when: "total > ${MIN_TOTAL}"
	  - id: sink
	    kind: passthrough
	links:
	  - {from: src, to: big}
	  - {from: big/out, to: sink/in}

Link endpoints are "node" or "node/port"; the source port defaults to
"out" and the destination port to "in". Link order is the edge
declaration order of the compiled graph.

	spec, err := config.LoadFile("orders.yaml")

# Variables

In YAML and JSON files ${NAME} is replaced by the environment variable
NAME in every string. WithEnv supplies variables explicitly and
WithMissing decides what happens to undefined ones. HCL files use native
HCL interpolation instead, with the environment exposed as env.NAME.

# Parameters

Config wraps a node's parameter map. Accessors return the default when a
key is missing or has the wrong type:

	size := cfg.Int("size", 100)
	every := cfg.Duration("every", time.Second)

Duration accepts a time.ParseDuration string or a number of seconds.
Int accepts any whole number, including the float64 values JSON produces.
*/
package config
