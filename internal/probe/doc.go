// Package probe performs single HTTP probes against the target: it builds the
// request with a rotated crawler user agent, issues the GET, classifies the
// outcome, records it in the run counters and applies the post-request delay.
//
// A probe never returns an error. Non-200 statuses and transport failures are
// both counted as failures and reported through Outcome.
package probe
