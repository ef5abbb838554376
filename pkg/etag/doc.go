// Package etag computes content-derived entity tags for successful GET
// responses and turns matching conditional requests into 304 Not Modified.
//
// The package is the core of a single response hook. A host framework
// describes the outgoing response as a ResponseContext, passes the route's
// RouteConfig and the request's If-None-Match value, and receives a Decision:
//
//   - PassThrough without ETag: the response is not eligible, send it as is
//   - PassThrough with ETag: send the response and set the ETag header
//   - NotModified: replace the response with 304, no body, same ETag header
//
// # Eligibility
//
// Rules are evaluated in order and the first failing rule ends evaluation:
//
//  1. error representations are never processed
//  2. routes with ETags disabled are not processed
//  3. only GET requests are processed
//  4. only status codes in [200, 300) are processed
//  5. absent payloads are not processed
//  6. only Text, Bytes and Structured payloads are processed
//
// # Fingerprints
//
// Text and Bytes payloads are hashed as they are. Structured payloads are
// first serialized with package canonical, so equal structures always yield
// the same tag. Tokens never contain double quotes; quoting on the wire is
// the host adapter's job.
//
// # Basic Usage
//
//	engine, err := etag.New(etag.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	decision, err := engine.Evaluate(etag.ResponseContext{
//		Method:     "GET",
//		StatusCode: 200,
//		Payload:    etag.Classify(map[string]any{"foo": []string{"bar"}}),
//	}, etag.RouteConfig{}, etag.IfNoneMatch(token))
//
// # Metrics
//
//   - etag_decisions_total{action} - Decisions by action (skip, etag, not_modified)
//   - etag_skips_total{reason} - Skipped responses by filter rule
//   - etag_serialization_errors_total - Structured payloads that failed to serialize
//   - etag_fingerprint_duration_seconds{algorithm} - Time spent fingerprinting
package etag
