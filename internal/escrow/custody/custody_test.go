package custody

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdhoang/escrow-be/internal/escrow/domain"
	"github.com/tdhoang/escrow-be/shared/logger"
)

const custodyAccount = domain.Identity("custody")

type stubNative struct {
	balances map[domain.Identity]uint64
	err      error
}

func (s *stubNative) Transfer(_ context.Context, to domain.Identity, amount uint64) error {
	if s.err != nil {
		return s.err
	}
	s.balances[to] += amount
	return nil
}

func (s *stubNative) TransferFrom(_ context.Context, from, to domain.Identity, amount uint64) error {
	if s.err != nil {
		return s.err
	}
	if s.balances[from] < amount {
		return errors.New("insufficient balance")
	}
	s.balances[from] -= amount
	s.balances[to] += amount
	return nil
}

type stubToken struct {
	balances map[domain.Identity]uint64
	ok       bool
	err      error
}

func (s *stubToken) Transfer(_ context.Context, to domain.Identity, amount uint64) (bool, error) {
	if s.err != nil || !s.ok {
		return false, s.err
	}
	s.balances[to] += amount
	return true, nil
}

func (s *stubToken) TransferFrom(_ context.Context, from, to domain.Identity, amount uint64) (bool, error) {
	if s.err != nil || !s.ok {
		return false, s.err
	}
	s.balances[from] -= amount
	s.balances[to] += amount
	return true, nil
}

func (s *stubToken) BalanceOf(_ context.Context, account domain.Identity) (uint64, error) {
	return s.balances[account], nil
}

func TestAdapterEscrowNative(t *testing.T) {
	ctx := context.Background()
	native := &stubNative{balances: map[domain.Identity]uint64{"alice": 100}}
	adapter := NewAdapter(custodyAccount, native, logger.NewDefault())

	require.NoError(t, adapter.Escrow(ctx, domain.AssetNative, "alice", 60))
	assert.Equal(t, uint64(40), native.balances["alice"])
	assert.Equal(t, uint64(60), native.balances[custodyAccount])

	t.Run("ledger error", func(t *testing.T) {
		native.err = errors.New("connection reset")
		err := adapter.Escrow(ctx, domain.AssetNative, "alice", 10)
		assert.ErrorIs(t, err, domain.ErrTransferFailed)
	})

	t.Run("no native ledger configured", func(t *testing.T) {
		bare := NewAdapter(custodyAccount, nil, logger.NewDefault())
		err := bare.Escrow(ctx, domain.AssetNative, "alice", 10)
		assert.ErrorIs(t, err, domain.ErrTransferFailed)
	})
}

func TestAdapterTransferNative(t *testing.T) {
	ctx := context.Background()
	native := &stubNative{balances: map[domain.Identity]uint64{custodyAccount: 60}}
	adapter := NewAdapter(custodyAccount, native, logger.NewDefault())

	require.NoError(t, adapter.Transfer(ctx, domain.AssetNative, "bob", 60))
	assert.Equal(t, uint64(60), native.balances["bob"])
}

func TestAdapterTokenPath(t *testing.T) {
	ctx := context.Background()
	asset := domain.Asset("0xdeadbeef")
	token := &stubToken{balances: map[domain.Identity]uint64{"alice": 100}, ok: true}

	adapter := NewAdapter(custodyAccount, nil, logger.NewDefault())
	adapter.RegisterToken(asset, token)

	require.NoError(t, adapter.Escrow(ctx, asset, "alice", 70))
	assert.Equal(t, uint64(30), token.balances["alice"])
	assert.Equal(t, uint64(70), token.balances[custodyAccount])

	require.NoError(t, adapter.Transfer(ctx, asset, "bob", 70))
	assert.Equal(t, uint64(70), token.balances["bob"])

	t.Run("boolean rejection maps to transfer failure", func(t *testing.T) {
		token.ok = false
		err := adapter.Escrow(ctx, asset, "alice", 10)
		assert.ErrorIs(t, err, domain.ErrTransferFailed)

		err = adapter.Transfer(ctx, asset, "bob", 10)
		assert.ErrorIs(t, err, domain.ErrTransferFailed)
	})

	t.Run("ledger error maps to transfer failure", func(t *testing.T) {
		token.ok = true
		token.err = errors.New("timeout")
		err := adapter.Escrow(ctx, asset, "alice", 10)
		assert.ErrorIs(t, err, domain.ErrTransferFailed)
	})

	t.Run("unknown token handle", func(t *testing.T) {
		err := adapter.Escrow(ctx, domain.Asset("0xunknown"), "alice", 10)
		assert.ErrorIs(t, err, domain.ErrTransferFailed)

		err = adapter.Transfer(ctx, domain.Asset("0xunknown"), "bob", 10)
		assert.ErrorIs(t, err, domain.ErrTransferFailed)
	})
}
