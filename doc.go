// Package helmsman provides a cluster coordination controller for partitioned,
// replicated resources.
//
// A cluster is described entirely by properties in a hierarchical store: ideal
// states, state-model definitions, constraints, instance configs, live
// instances and per-session current states. The Controller reads those
// properties, computes the best-possible placement of every partition replica
// and writes the result back as resource assignments and external views.
//
// # Quick Start
//
//	import (
//	    "github.com/arloliu/helmsman"
//	    "github.com/arloliu/helmsman/store/memory"
//	)
//
//	cfg := helmsman.DefaultConfig()
//	cfg.ClusterName = "mycluster"
//
//	ctrl, err := helmsman.NewController(&cfg, memory.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := ctrl.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer ctrl.Stop(context.Background())
//
// # Key Features
//
//   - Typed property accessor over pluggable stores (memory, NATS KV, BoltDB, SQL)
//   - State models with priorities, upper bounds and transition tables
//   - Message constraints matched by attribute with ordered throttling
//   - CUSTOMIZED rebalancing driven by per-partition preference maps
//   - Pluggable rebalancers per mode or by name
//
// # Architecture
//
// The controller progresses through a state machine:
//
//	INIT → RUNNING ⇄ RECONCILING → STOPPED
//	          ↓
//	        PAUSED
//
// Each pass loads a snapshot of the cluster, builds the ResourceCurrentState
// from the live participants' sessions, runs the rebalancer selected for each
// resource and persists only assignments that changed. Store changes under the
// cluster root trigger a pass; a poll interval covers stores that cannot watch.
//
// # Administration
//
// The admin package creates clusters, participants and resources, and the
// liveness package keeps a participant's live-instance node fresh:
//
//	adm := admin.New(accessor.New(st))
//	_ = adm.AddCluster(ctx, "mycluster")
//	_ = adm.AddStateModelDef(ctx, "mycluster", model.MasterSlave())
//	_ = adm.AddResource(ctx, "mycluster", "TestDB", admin.ResourceSpec{
//	    Partitions: 4,
//	    StateModel: model.MasterSlaveModel,
//	    Mode:       model.RebalanceModeCustomized,
//	})
//
//	ann := liveness.New(accessor.New(st), "mycluster", "localhost_12918")
//	_ = ann.Start(ctx)
//
// See the examples directory for complete programs.
package helmsman
