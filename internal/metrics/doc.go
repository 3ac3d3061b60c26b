// Package metrics exposes build outcomes as Prometheus metrics.
//
// A Recorder observes the engine and keeps counters and histograms in its
// own registry. Long-running callers (the watcher) scrape nothing over HTTP;
// they write the registry to a node-exporter textfile after every build.
package metrics
