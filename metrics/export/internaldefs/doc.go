// Package internaldefs holds the exported metric names and bucket layout
// shared by the Prometheus and OTel exporters, so both publish identical
// series for the same engine counters.
package internaldefs
