// Package telemetry provides observability instrumentation for buildsmith.
//
// It bundles structured logging (zerolog), tracing (OpenTelemetry) and metrics
// (Prometheus) behind one Telemetry value that the CLI wires up once and the
// pipeline components receive explicitly.
//
// Initialize at startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Component loggers carry the run and context identity:
//
//	logger := tel.Logger.NewComponentLogger("processor")
//	logger = logger.WithRunID(runID).WithBuildContext("core.Debug+Board")
//	logger.Info("processing context")
//
// Because buildsmith is a one-shot CLI there is no metrics HTTP listener;
// metrics accumulated during the run can be dumped to a Prometheus textfile
// with Metrics.Dump for collection by a node-exporter textfile collector.
//
// Key metrics:
//
//   - smith_contexts_processed_total{status}
//   - smith_context_resolution_duration_seconds
//   - smith_artifacts_written_total{kind}
//   - smith_packs_resolved_total
//
// Tracing exports to stdout (pretty-printed, for --trace debugging) or to an
// OTLP/gRPC collector when an endpoint is configured.
package telemetry
