package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

// Kind classifies a transport-level failure.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindDNS        Kind = "dns"
	KindConnection Kind = "connection"
	KindProtocol   Kind = "protocol"
	KindInvalidURL Kind = "invalid_url"
	KindCanceled   Kind = "canceled"
	KindOther      Kind = "other"
)

// Outcome is the result of one attempt: either a response status
// (StatusCode > 0, Err == nil) or a transport failure (Err != nil, Kind set).
type Outcome struct {
	StatusCode int
	Err        error
	Kind       Kind
	URL        string
	Latency    time.Duration
}

// Response builds the outcome of a completed request.
func Response(statusCode int, target string) Outcome {
	return Outcome{StatusCode: statusCode, URL: target}
}

// Failure builds the outcome of a request that produced no response.
func Failure(err error) Outcome {
	return Outcome{Err: err, Kind: Classify(err)}
}

// Completed reports whether an HTTP response was received, whatever its status.
func (o Outcome) Completed() bool {
	return o.Err == nil && o.StatusCode > 0
}

// Success reports whether the attempt counts toward the success counter.
func (o Outcome) Success() bool {
	return o.Completed() && o.StatusCode == http.StatusOK
}

// Classify maps a transport error onto a failure Kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return KindInvalidURL
	}
	var escapeErr url.EscapeError
	if errors.As(err, &escapeErr) {
		return KindInvalidURL
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}

	if urlErr != nil {
		return KindProtocol
	}
	return KindOther
}
