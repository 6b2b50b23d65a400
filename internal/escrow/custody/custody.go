package custody

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tdhoang/escrow-be/internal/escrow/domain"
)

// TokenLedger is the minimal capability of an external fungible-asset
// ledger. Boolean results follow the ledger's own success reporting.
type TokenLedger interface {
	Transfer(ctx context.Context, to domain.Identity, amount uint64) (bool, error)
	TransferFrom(ctx context.Context, from, to domain.Identity, amount uint64) (bool, error)
	BalanceOf(ctx context.Context, account domain.Identity) (uint64, error)
}

// NativeLedger moves native units directly. Transfer may invoke code on the
// recipient side; that callback is the reentrancy vector the engine guards.
type NativeLedger interface {
	Transfer(ctx context.Context, to domain.Identity, amount uint64) error
	TransferFrom(ctx context.Context, from, to domain.Identity, amount uint64) error
}

// Adapter selects the custody path per asset handle and moves deposits in
// and out of escrow. It never retries; any failure aborts the enclosing
// operation.
type Adapter struct {
	account domain.Identity // custody account holding escrowed deposits
	native  NativeLedger
	tokens  map[domain.Asset]TokenLedger
	logger  *slog.Logger
}

// NewAdapter creates a custody adapter holding funds under the given
// custody account on each ledger.
func NewAdapter(account domain.Identity, native NativeLedger, logger *slog.Logger) *Adapter {
	return &Adapter{
		account: account,
		native:  native,
		tokens:  make(map[domain.Asset]TokenLedger),
		logger:  logger,
	}
}

// RegisterToken binds a token handle to its ledger capability.
func (a *Adapter) RegisterToken(asset domain.Asset, ledger TokenLedger) {
	a.tokens[asset] = ledger
}

// Escrow pulls the deposit from the payer into custody.
func (a *Adapter) Escrow(ctx context.Context, asset domain.Asset, from domain.Identity, amount uint64) error {
	if asset.IsNative() {
		if a.native == nil {
			return fmt.Errorf("%w: no native ledger configured", domain.ErrTransferFailed)
		}
		if err := a.native.TransferFrom(ctx, from, a.account, amount); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
		}
		return nil
	}

	ledger, ok := a.tokens[asset]
	if !ok {
		return fmt.Errorf("%w: unknown token ledger %s", domain.ErrTransferFailed, asset)
	}
	ok, err := ledger.TransferFrom(ctx, from, a.account, amount)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	if !ok {
		return fmt.Errorf("%w: token ledger %s rejected transferFrom", domain.ErrTransferFailed, asset)
	}
	return nil
}

// Transfer releases funds from custody to the recipient.
func (a *Adapter) Transfer(ctx context.Context, asset domain.Asset, recipient domain.Identity, amount uint64) error {
	a.logger.Info("Releasing escrowed funds",
		slog.String("asset", string(asset)),
		slog.String("recipient", string(recipient)),
		slog.Uint64("amount", amount),
	)

	if asset.IsNative() {
		if a.native == nil {
			return fmt.Errorf("%w: no native ledger configured", domain.ErrTransferFailed)
		}
		if err := a.native.Transfer(ctx, recipient, amount); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
		}
		return nil
	}

	ledger, ok := a.tokens[asset]
	if !ok {
		return fmt.Errorf("%w: unknown token ledger %s", domain.ErrTransferFailed, asset)
	}
	ok, err := ledger.Transfer(ctx, recipient, amount)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	if !ok {
		return fmt.Errorf("%w: token ledger %s rejected transfer", domain.ErrTransferFailed, asset)
	}
	return nil
}
