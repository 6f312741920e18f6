// Package deploy builds pipelines from declarative descriptions.
//
// Operator kinds are registered by name with a Factory; Build looks up the
// kind of every node in a config.PipelineSpec, builds its operator from the
// node's parameters and compiles the resulting graph:
//
//	kinds := deploy.NewKinds()
//	op.Register(kinds)
//	p, err := deploy.BuildFile("orders.yaml", kinds, nil, dataflow.WithLogger(logger))
package deploy
