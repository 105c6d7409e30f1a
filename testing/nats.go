package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StartEmbeddedNATS starts an in-process NATS server with JetStream and
// returns it with one connected client.
//
// The server listens on a random loopback port and keeps JetStream data in
// t.TempDir(). Server and client are shut down on test cleanup.
//
// Example:
//
//	func TestNATSStore(t *testing.T) {
//	    _, nc := helmtest.StartEmbeddedNATS(t)
//	    st, err := natskv.New(t.Context(), nc, natskv.Config{Bucket: "c"})
//	    require.NoError(t, err)
//	}
func StartEmbeddedNATS(t testing.TB) (*server.Server, *nats.Conn) {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		t.Fatalf("create embedded NATS server: %v", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("embedded NATS server not ready within 5s")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns, Connect(t, ns)
}

// Connect opens an additional client to an embedded server, closed on test
// cleanup. Separate clients stand in for separate processes, for example a
// controller and a participant.
func Connect(t testing.TB, ns *server.Server) *nats.Conn {
	t.Helper()

	nc, err := nats.Connect(ns.ClientURL(),
		nats.Timeout(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(3),
	)
	if err != nil {
		t.Fatalf("connect to embedded NATS server: %v", err)
	}
	t.Cleanup(nc.Close)

	return nc
}

// CreateJetStreamKV creates an in-memory KV bucket with one replica.
//
// Parameters:
//   - t: Testing context
//   - nc: Connection from StartEmbeddedNATS or Connect
//   - bucket: Bucket name
//   - ttl: Per-key TTL, zero for none
//
// Example:
//
//	_, nc := helmtest.StartEmbeddedNATS(t)
//	kv := helmtest.CreateJetStreamKV(t, nc, "helmsman-live", 2*time.Second)
func CreateJetStreamKV(t testing.TB, nc *nats.Conn, bucket string, ttl time.Duration) jetstream.KeyValue {
	t.Helper()

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("create JetStream context: %v", err)
	}

	kv, err := js.CreateKeyValue(t.Context(), jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("test bucket %s", bucket),
		TTL:         ttl,
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
	})
	if err != nil {
		t.Fatalf("create KV bucket %s: %v", bucket, err)
	}

	return kv
}
