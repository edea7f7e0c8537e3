/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
workspace daemon, tracking HTTP requests, connectivity transitions, sync
cycles, bridge traffic, and desktop install activity.

# Features

- HTTP request metrics (latency, throughput, size)
- Component operation metrics (duration, errors)
- Connectivity metrics (online gauge, reconnect transitions)
- Sync cycle metrics (results, duration, coalesced reconnects)
- Bridge metrics (messages by direction and type, drops, agent attachment)
- Lifecycle publication metrics (snapshots, subscribers, stream clients)
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record domain metrics
	metrics.IncReconnects()
	metrics.RecordSyncCycle("completed", elapsed)

	// Time operations
	timer := monitoring.NewTimer(metrics, "storage", "estimate")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
