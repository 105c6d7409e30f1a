// Package testing provides test utilities for the Helmsman library.
//
// This package offers helpers for setting up test environments, particularly
// an embedded NATS server for exercising the JetStream KV store backend. It
// follows Go's convention of providing testing utilities in a dedicated
// package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - NewTestLogger: types.Logger writing through testing.T
//
// Example usage:
//
//	import (
//	    "testing"
//	    helmtest "github.com/arloliu/helmsman/testing"
//	)
//
//	func TestMyStore(t *testing.T) {
//	    _, nc := helmtest.StartEmbeddedNATS(t)
//	    st, err := natskv.New(t.Context(), nc, natskv.Config{Bucket: "c"})
//	    // ...
//	}
package testing
