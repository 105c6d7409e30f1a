package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/helmsman"
	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/store/boltdb"
	"github.com/arloliu/helmsman/store/memory"
	"github.com/arloliu/helmsman/store/natskv"
	"github.com/arloliu/helmsman/store/sqlstore"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// openStore builds the backend selected by cfg. The returned close function
// releases the store and any connection it owns.
func openStore(ctx context.Context, cfg helmsman.StoreConfig, logger helmsman.Logger) (store.Store, func(context.Context) error, error) {
	switch cfg.Backend {
	case helmsman.BackendMemory:
		st := memory.New()
		return st, st.Close, nil

	case helmsman.BackendNATSKV:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("helmsman"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to nats %s: %w", cfg.NATSURL, err)
		}
		st, err := natskv.New(ctx, nc, natskv.Config{
			Bucket:          cfg.PersistentBucket,
			EphemeralBucket: cfg.EphemeralBucket,
			EphemeralTTL:    cfg.EphemeralTTL,
			Replicas:        cfg.Replicas,
		}, natskv.WithLogger(logger))
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		closeFn := func(ctx context.Context) error {
			defer nc.Close()
			return st.Close(ctx)
		}

		return st, closeFn, nil

	case helmsman.BackendBoltDB:
		st, err := boltdb.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	case helmsman.BackendSQL:
		st, err := sqlstore.Open(ctx, sqlstore.Config{
			Driver: cfg.SQLDriver,
			DSN:    cfg.SQLDSN,
			Table:  cfg.SQLTable,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
