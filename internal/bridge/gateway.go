package bridge

import (
	"fmt"

	"cosmossdk.io/math"

	"github.com/lumefi/bridgepool/internal/ledger"
	"github.com/lumefi/bridgepool/internal/types"
)

// TokenGateway moves base-token value between the two domains. On the near
// domain the token is a deposited representation of far-domain collateral, so
// crossing burns on one ledger and mints on the other.
type TokenGateway interface {
	// EscrowToFar burns amount of the near-domain token held by from and
	// credits it to the far-domain address to.
	EscrowToFar(from, to types.Address, amount math.Int) error

	// ReleaseToNear credits amount of the near-domain token to the address to,
	// backed by far-domain value leaving through the gateway.
	ReleaseToNear(to types.Address, amount math.Int) error
}

// MemoryGateway bridges two in-memory ledgers.
type MemoryGateway struct {
	nearToken *ledger.Ledger
	farToken  *ledger.Ledger
}

// NewMemoryGateway wires the gateway to the two domain token ledgers.
func NewMemoryGateway(nearToken, farToken *ledger.Ledger) *MemoryGateway {
	return &MemoryGateway{nearToken: nearToken, farToken: farToken}
}

func (g *MemoryGateway) EscrowToFar(from, to types.Address, amount math.Int) error {
	if err := g.nearToken.Burn(from, amount); err != nil {
		return fmt.Errorf("gateway escrow: %w", err)
	}
	if err := g.farToken.Mint(to, amount); err != nil {
		return fmt.Errorf("gateway escrow credit: %w", err)
	}
	return nil
}

func (g *MemoryGateway) ReleaseToNear(to types.Address, amount math.Int) error {
	if err := g.nearToken.Mint(to, amount); err != nil {
		return fmt.Errorf("gateway release: %w", err)
	}
	return nil
}
