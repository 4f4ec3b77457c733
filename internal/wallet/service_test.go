package wallet

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_Errors(t *testing.T) {
	chain := newMockChain(1)
	kr := newMockKeyring(false)

	_, err := NewService(Config{ChainID: "bitcoin_mainnet"}, chain, kr, nil)
	require.Error(t, err)

	_, err = NewService(Config{ChainID: testChainID, ShieldedEnabled: true}, chain, kr, nil)
	require.Error(t, err)

	_, err = NewService(Config{ChainID: testChainID}, nil, kr, nil)
	require.Error(t, err)
}

func TestService_DropOnCancel(t *testing.T) {
	f := newFixture(t, false)
	f.chain.block = make(chan struct{})
	defer close(f.chain.block)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := f.svc.ResolveBalance(ctx, 0)
		errc <- err
	}()

	require.Eventually(t, func() bool { return len(f.svc.Tasks()) == 1 }, time.Second, time.Millisecond)
	info := f.svc.Tasks()[0]
	require.Equal(t, taskBalance, info.Kind)
	require.Equal(t, uint32(0), info.Account)

	cancel()
	err := <-errc
	require.ErrorIs(t, err, ErrTaskDropped)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, f.svc.Tasks())
}

func TestService_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t, false)

	// Whichever side claims the result, the caller sees a dropped task.
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.svc.ResolveBalance(ctx, 0)
		require.ErrorIs(t, err, ErrTaskDropped)
		require.ErrorIs(t, err, context.Canceled)
	}
	require.Empty(t, f.svc.Tasks())
}

func TestDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	r := dropped(ctx, taskResult[int]{err: context.Canceled})
	require.NotErrorIs(t, r.err, ErrTaskDropped, "live context keeps the task error")

	cancel()
	r = dropped(ctx, taskResult[int]{err: fmt.Errorf("fetch height: %w", context.Canceled)})
	require.ErrorIs(t, r.err, ErrTaskDropped)
	require.ErrorIs(t, r.err, context.Canceled)

	r = dropped(ctx, taskResult[int]{err: ErrInsufficientFunds})
	require.ErrorIs(t, r.err, ErrInsufficientFunds)
	require.NotErrorIs(t, r.err, ErrTaskDropped)
}

func TestService_DeregistersOnCompletion(t *testing.T) {
	f := newFixture(t, false)
	f.chain.addUTXO(f.receive(0, 0), 100000)

	_, err := f.svc.BuildTransparentTransaction(context.Background(), 0, mainnetTAddr, 1000)
	require.NoError(t, err)
	_, err = f.svc.BuildTransparentTransaction(context.Background(), 0, testnetTAddr, 1000)
	require.Error(t, err)
	require.Empty(t, f.svc.Tasks())
}

// countingChain records how many height queries run at once.
type countingChain struct {
	*mockChain
	active atomic.Int32
	peak   atomic.Int32
}

func (c *countingChain) GetLatestBlockHeight(ctx context.Context, chainID string) (uint32, error) {
	n := c.active.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	c.active.Add(-1)
	return c.mockChain.GetLatestBlockHeight(ctx, chainID)
}

func TestService_SerializesBuildsPerAccount(t *testing.T) {
	chain := &countingChain{mockChain: newMockChain(1000)}
	kr := newMockKeyring(false)
	svc, err := NewService(Config{ChainID: testChainID}, chain, kr, nil)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		chain.addUTXO(kr.addr(typesKey(0, false, 0)), 50000)
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.BuildTransparentTransaction(context.Background(), 0, mainnetTAddr, 1000)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Each build queries the height twice (locktime, change discovery),
	// always from a single build at a time.
	require.Equal(t, int32(1), chain.peak.Load())
	require.Equal(t, 12, chain.heightCalls)
}
