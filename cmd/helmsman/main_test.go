package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/helmsman"
	"github.com/arloliu/helmsman/accessor"
	"github.com/arloliu/helmsman/admin"
	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "helmsman.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestStateModelsCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"statemodels"})
	require.NoError(t, cmd.Execute())

	text := out.String()
	require.Contains(t, text, "MasterSlave (initial OFFLINE)")
	require.Contains(t, text, "  MASTER [1]\n")
	require.Contains(t, text, "  SLAVE [R]\n")
	require.Contains(t, text, "OFFLINE-SLAVE")
	require.Contains(t, text, "OnlineOffline (initial OFFLINE)")
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := writeConfig(t, "clusterName: c1\nstore:\n  backend: boltdb\n")
		var out bytes.Buffer
		require.NoError(t, validateConfig(&out, path, false))
		require.Contains(t, out.String(), "ok (cluster c1, boltdb backend)")
		require.NotContains(t, out.String(), "warning:")
	})

	t.Run("memory backend warns", func(t *testing.T) {
		path := writeConfig(t, "clusterName: c1\n")
		var out bytes.Buffer
		require.NoError(t, validateConfig(&out, path, false))
		require.Contains(t, out.String(), "warning:")
	})

	t.Run("print effective configuration", func(t *testing.T) {
		path := writeConfig(t, "clusterName: c1\nstore:\n  backend: boltdb\n")
		var out bytes.Buffer
		require.NoError(t, validateConfig(&out, path, true))
		require.Contains(t, out.String(), "clusterName: c1")
		require.Contains(t, out.String(), "passTimeout: 30s")
	})

	t.Run("invalid file", func(t *testing.T) {
		path := writeConfig(t, "pollInterval: 5s\n")
		err := validateConfig(&bytes.Buffer{}, path, false)
		require.ErrorIs(t, err, helmsman.ErrInvalidConfig)
	})
}

func TestLoadRunConfig(t *testing.T) {
	t.Run("defaults need a cluster", func(t *testing.T) {
		_, err := loadRunConfig(&runOptions{})
		require.ErrorIs(t, err, helmsman.ErrInvalidConfig)
	})

	t.Run("flag overrides file", func(t *testing.T) {
		path := writeConfig(t, "pollInterval: 5s\n")
		cfg, err := loadRunConfig(&runOptions{configPath: path, cluster: "from-flag"})
		require.NoError(t, err)
		require.Equal(t, "from-flag", cfg.ClusterName)
		require.Equal(t, helmsman.BackendMemory, cfg.Store.Backend)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadRunConfig(&runOptions{configPath: filepath.Join(t.TempDir(), "missing.yaml"), cluster: "c1"})
		require.Error(t, err)
	})
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTest(t)

	t.Run("memory", func(t *testing.T) {
		st, closeFn, err := openStore(ctx, helmsman.StoreConfig{Backend: helmsman.BackendMemory}, logger)
		require.NoError(t, err)
		require.NotNil(t, st)
		require.NoError(t, closeFn(ctx))
	})

	t.Run("boltdb", func(t *testing.T) {
		cfg := helmsman.StoreConfig{Backend: helmsman.BackendBoltDB, BoltPath: filepath.Join(t.TempDir(), "h.db")}
		st, closeFn, err := openStore(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, st)
		require.NoError(t, closeFn(ctx))
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := helmsman.StoreConfig{
			Backend:   helmsman.BackendSQL,
			SQLDriver: "sqlite3",
			SQLDSN:    filepath.Join(t.TempDir(), "h.sqlite"),
			SQLTable:  "props",
		}
		st, closeFn, err := openStore(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, st)
		require.NoError(t, closeFn(ctx))
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, _, err := openStore(ctx, helmsman.StoreConfig{Backend: "etcd"}, logger)
		require.Error(t, err)
	})
}

func TestBootstrapCluster(t *testing.T) {
	ctx := context.Background()
	st, closeFn, err := openStore(ctx, helmsman.StoreConfig{Backend: helmsman.BackendMemory}, logging.NewNop())
	require.NoError(t, err)
	defer func() { _ = closeFn(ctx) }()

	da := accessor.New(st)
	require.NoError(t, bootstrapCluster(ctx, da, "c1", logging.NewNop()))
	require.NoError(t, bootstrapCluster(ctx, da, "c1", logging.NewNop()))

	def, err := accessor.GetAs[*model.StateModelDefinition](ctx, da, accessor.NewKeyBuilder("c1").StateModelDef(model.LeaderStandbyModel))
	require.NoError(t, err)
	require.NotNil(t, def)

	// The bootstrapped cluster accepts resources of the built-in models.
	adm := admin.New(da)
	require.NoError(t, adm.AddResource(ctx, "c1", "TestDB", admin.ResourceSpec{
		Partitions: 2,
		StateModel: model.MasterSlaveModel,
	}))
}
