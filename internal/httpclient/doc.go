// Package httpclient provides the HTTP plumbing for crawlprobe requests.
//
// [NewRequestBuilder] resolves candidate paths against the target base URL and
// stamps each GET with the crawler headers (a rotating User-Agent plus static
// Accept, Accept-Language and Connection values):
//
//	builder, err := httpclient.NewRequestBuilder("https://example.com/blog/", agents)
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx, "/robots.txt") // https://example.com/robots.txt
//
// [NewClient] creates a client with a per-request timeout and pooled
// keep-alive connections. Redirects are followed transparently.
package httpclient
