// Package spawnpool provides a template-keyed object recycling pool for
// short-lived scene entities such as projectiles, particle effects and
// decals.
//
// Instead of building and destroying an entity every time one is needed,
// spawnpool keeps a FIFO queue of pre-built entities per template, hands
// out the front entity when it is free, grows the queue when it is not, and
// deactivates spawned entities once their lifetime has elapsed.
//
// # Architecture
//
// The module is split into small packages:
//
//   - pkg/pool: the Manager, templates, instances, per-template queues and
//     the lifetime tracker
//   - pkg/clock: the time source and the Driver that calls Manager.Tick on
//     an interval
//   - pkg/config: YAML/viper configuration for templates, logging, metrics,
//     tracing and the simulator
//   - pkg/errors: typed errors shared by every package
//   - pkg/logger: the global zap logger
//   - pkg/metrics: Prometheus collectors for pool activity
//   - pkg/observability: OpenTelemetry spans around spawns and ticks, plus
//     process resource sampling
//   - pkg/json: pooled JSON encoding for reports and stats streams
//   - internal/sim: a simulated scene used by the CLI and the tests
//
// # Quick Start
//
//	m := pool.NewManager(pool.WithLogger(logger.Get()))
//	defer m.Shutdown()
//
//	err := m.Register(pool.Template{
//	    ID:       "bullet",
//	    Size:     16,
//	    Lifetime: 2 * time.Second,
//	    Factory:  bulletFactory,
//	})
//
//	inst, err := m.Spawn("bullet", muzzle)
//
//	// Elsewhere, once per frame or on a fixed interval:
//	m.Tick(time.Now())
//
// # Configuration
//
// Templates and the ambient stack are described in YAML:
//
//	name: arena
//	pool:
//	  tick_interval: 50ms
//	templates:
//	  - id: bullet
//	    size: 16
//	    lifetime: 2s
//	  - id: decal
//	    size: 8
//	    warm: 8
//
// Lifetimes accept Go durations or plain seconds. Environment variables are
// substituted with ${VAR_NAME} syntax, and SPAWNPOOL_* variables override
// individual keys when loaded through viper.
//
// # Command Line
//
//	spawnpool validate --config spawnpool.yaml
//	spawnpool simulate --config spawnpool.yaml --duration 30s --metrics-addr :9090
//	spawnpool version
package spawnpool
