// Package heartbeat keeps TTL-bound session data alive.
//
// Ephemeral store nodes are written to a KV bucket whose keys expire after a
// TTL. A Publisher periodically calls a Beat function that rewrites every
// node owned by the session, resetting the TTL. When the process dies the
// beats stop and the nodes expire, which is how participants drop out of the
// live-instance registry without an explicit goodbye.
//
// # Publisher Lifecycle
//
//  1. Create publisher with New(beat, interval)
//  2. Start beating with Start(ctx); the first beat runs synchronously
//  3. Stop beating with Stop()
//
// Example:
//
//	publisher := heartbeat.New(store.refreshOwned, ttl/3)
//	publisher.SetLogger(logger)
//	if err := publisher.Start(ctx); err != nil {
//	    return err
//	}
//	defer publisher.Stop()
//
// # Interval Selection
//
// The interval should be about a third of the bucket TTL so that two missed
// beats are tolerated before nodes expire.
//
// # Thread Safety
//
// The Publisher is thread-safe and can be accessed concurrently from multiple
// goroutines.
package heartbeat
