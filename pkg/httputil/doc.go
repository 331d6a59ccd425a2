// Package httputil provides HTTP utilities for the REST collaborators of the
// website: the database REST API, the auth API and the object-storage API.
//
// # Overview
//
//   - [Client]: JSON HTTP client with default headers and status classification
//   - [Retry]: Automatic retry with exponential backoff
//
// # Errors
//
// Responses are classified into [ErrNotFound] (404), [ErrUnauthorized]
// (401/403) and [ErrNetwork] (everything else). Connection failures, 5xx and
// 429 responses are wrapped with [RetryableError] and retried:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    return call()
//	})
//
// Cancelling the request context aborts the in-flight request and returns
// ctx.Err() rather than a network error.
package httputil
