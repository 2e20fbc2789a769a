// Package config provides configuration management for spawnpool hosts and
// the spawnpool CLI.
//
// # Key Features
//
// - Config: single structure covering pool, templates, logging, metrics, tracing and simulation
// - Durations written as seconds (2, 0.5) or Go duration strings ("1500ms")
// - Environment variable substitution with ${VAR_NAME} syntax
// - Layered loading with viper: defaults, file, SPAWNPOOL_* environment
// - Automatic defaults and validation
//
// # Usage
//
// ## Basic Configuration Loading
//
//	cfg, err := config.LoadFile("spawnpool.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// ## Layered Loading
//
//	// SPAWNPOOL_METRICS_ENABLED=true SPAWNPOOL_POOL_TICK_INTERVAL=50ms
//	cfg, err := config.LoadViper("spawnpool.yaml")
//
// ## Registering Templates
//
//	for _, t := range cfg.Templates {
//		if err := m.Warm(t.Template(factory), t.Warm); err != nil {
//			return err
//		}
//	}
//
// # Configuration File
//
//	name: arena
//	pool:
//	  tick_interval: 100ms
//	templates:
//	  - id: bullet
//	    size: 64
//	    lifetime: 2
//	  - id: muzzle_flash
//	    size: 8
//	    lifetime: 150ms
//	    recycle_without_lifetime: true
//	  - id: decal
//	    size: 32
//	metrics:
//	  enabled: true
//	  address: ${METRICS_ADDR}
//
// A lifetime of 0 (or an omitted lifetime) disables lifetime tracking for
// the template.
package config
