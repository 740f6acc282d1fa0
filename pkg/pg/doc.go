// Package pg provides utilities for connecting to PostgreSQL using the
// pgx/v5 driver. It offers a thin layer around connection pooling, schema
// migrations, and health checks so an application can bootstrap its database
// layer with a few lines of code.
//
// # Architecture
//
// The package exposes three cooperating building blocks:
//
//   - Config, a declarative struct whose fields are populated from
//     environment variables via github.com/caarlos0/env. It controls
//     connection pool limits, retry cadence and the migrations path.
//
//   - Connect, which opens a *pgxpool.Pool based on Config, retrying with a
//     linear back-off until the database becomes reachable or the attempts
//     are exhausted.
//
//   - Migrate and MigrateFS, which run goose migrations against the same
//     pool, guaranteeing the schema is current before the service starts
//     serving traffic. Migrate reads .sql files from disk; MigrateFS reads
//     them from an embedded filesystem such as migrations.FS.
//
// # Usage
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    log.Fatal(err)
//	}
//
// Health checks integrate with readiness probes:
//
//	check := pg.Healthcheck(pool)
//	if err := check(ctx); err != nil {
//	    // report not ready
//	}
//
// IsTransientError classifies connection and serialization failures that are
// safe to retry, which storage layers use to tag their errors.
package pg
