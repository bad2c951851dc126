// Package metrics holds the run counters shared by every concurrent request.
//
// A single [Collector] is created per run and handed to the request executor.
// Each attempt is recorded exactly once, either as a success or a failure,
// together with its latency and an optional status code and path:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//
//	collector.RecordRequest(latency, status == 200, &metrics.RequestMetadata{
//		Path:       "/robots.txt",
//		StatusCode: "200",
//	})
//
//	stats := collector.Stats(elapsed)
//
// Latency percentiles come from an HDR histogram tracking 1µs to 60s.
//
// # Thread Safety
//
// All updates take the same mutex, so Successes+Failures always equals the
// number of recorded attempts, even while workers are still running.
package metrics
