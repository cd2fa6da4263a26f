/*
Package monitoring provides Prometheus-based metrics collection.

# Overview

This package tracks fragment executions, injection passes, marker renders,
and admin HTTP traffic, plus process uptime.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record executions
	metrics.RecordExecution("server-logic", "success", duration)
*/
package monitoring
