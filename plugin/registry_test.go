package plugin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/plugin"
	"github.com/xraph/bnpl/pool"
)

type recorder struct {
	mu      sync.Mutex
	name    string
	charges []credit.ChargeAuthorized
	fail    bool
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnChargeAuthorized(_ context.Context, ev credit.ChargeAuthorized) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.charges = append(r.charges, ev)
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnReserveReplenished(ctx context.Context, _ pool.ReserveReplenished) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&recorder{name: "a"}))
	assert.Error(t, r.Register(&recorder{name: "a"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("missing"))
}

func TestEmitDispatchesAndSwallowsErrors(t *testing.T) {
	r := plugin.NewRegistry()
	failing := &recorder{name: "failing", fail: true}
	ok := &recorder{name: "ok"}
	require.NoError(t, r.Register(failing))
	require.NoError(t, r.Register(ok))

	r.EmitChargeAuthorized(context.Background(), credit.ChargeAuthorized{Owner: "alice", Amount: 400, Installments: 4})

	assert.Len(t, failing.charges, 1)
	require.Len(t, ok.charges, 1)
	assert.Equal(t, uint8(4), ok.charges[0].Installments)
}

func TestEmitTimesOut(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	require.NoError(t, r.Register(slow{}))

	start := time.Now()
	r.EmitReserveReplenished(context.Background(), pool.ReserveReplenished{Amount: 1})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
