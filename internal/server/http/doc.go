// Package httpserver serves the killmail long-poll feeds over HTTP:
// /redisq (RedisQ-compatible packages) and /stream (verbose killmails),
// plus /v1/healthz, /v1/stats and /metrics.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
