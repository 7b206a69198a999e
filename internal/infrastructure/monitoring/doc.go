/*
Package monitoring provides Prometheus metrics for the playground service.

It tracks HTTP traffic, open sessions, console records by level, dropped
bridge messages, frame reloads and errors, storage outcomes and stream
connections.

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
*/
package monitoring
