// Package server exposes the executor over HTTP with gin.
//
// Routes:
//
//	POST /api/v1/prediction  run one prediction
//	GET  /ws                 websocket stream hub (when configured)
//	GET  /metrics            Prometheus metrics (when configured)
//	GET  /healthz            liveness probe
package server
