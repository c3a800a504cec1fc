package extension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/indexer"
	"github.com/xraph/bnpl/keeper"
	"github.com/xraph/bnpl/store/memory"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{HookTimeout: time.Second})

	assert.Equal(t, time.Second, cfg.HookTimeout)
	assert.Equal(t, DriverMemory, cfg.Driver)
	assert.Equal(t, "vault", cfg.VaultCustody)
	assert.Equal(t, 30*24*time.Hour, cfg.InstallmentInterval)
	assert.Equal(t, keeper.DefaultConfig(), cfg.Keeper)
}

func TestMergeConfigurationsPrefersFile(t *testing.T) {
	file := Config{Driver: DriverPostgres, VaultCustody: "escrow"}
	prog := Config{
		Driver:        DriverSQLite,
		KeeperSigner:  "issuer",
		DisableKeeper: true,
		Keeper:        keeper.Config{Risk: "@every 1m"},
	}

	cfg := mergeConfigurations(file, prog)
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "escrow", cfg.VaultCustody)
	assert.Equal(t, "issuer", cfg.KeeperSigner)
	assert.True(t, cfg.DisableKeeper)
	assert.Equal(t, "@every 1m", cfg.Keeper.Risk)
	assert.Equal(t, 5*time.Second, cfg.HookTimeout)
}

func TestOpenStoreRequiresGroveForSQLDrivers(t *testing.T) {
	e := New(WithConfig(Config{Driver: DriverPostgres}))
	_, err := e.openStore()
	assert.Error(t, err)

	e = New(WithConfig(Config{Driver: DriverMemory}))
	s, err := e.openStore()
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
}

func TestBuildWiresIndexerAndKeeper(t *testing.T) {
	ctx := context.Background()
	e := New(
		WithConfig(mergeWithDefaults(Config{KeeperSigner: "issuer"})),
		WithOrders(indexer.SingleMerchant("shop")),
	)
	require.NoError(t, e.build())
	require.NotNil(t, e.Keeper())
	require.NotNil(t, e.Indexer())

	eng := e.Engine()
	require.NoError(t, eng.Start(ctx))
	defer func() { _ = eng.Stop() }()

	_, err := eng.InitRiskConfig(ctx, "issuer", credit.RiskParams{})
	require.NoError(t, err)
	_, err = eng.OpenAccount(ctx, "alice")
	require.NoError(t, err)
	_, err = eng.SetLimit(ctx, "issuer", "alice", 900)
	require.NoError(t, err)
	_, err = eng.Charge(ctx, "alice", "alice", 900, 3, [32]byte{1})
	require.NoError(t, err)
	require.NoError(t, e.Indexer().Stop(ctx))

	assert.Equal(t, indexer.Stats{Processed: 1}, e.Indexer().Stats())
}

func TestBuildWithoutSignerSkipsKeeper(t *testing.T) {
	e := New(WithConfig(mergeWithDefaults(Config{})))
	require.NoError(t, e.build())
	assert.Nil(t, e.Keeper())
	assert.Nil(t, e.Indexer())
}
