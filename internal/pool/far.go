/*

FarPool is the yield-investing end of the bridged pool pair. Funds arrive
through the token gateway, get invested into the external yield source, and
leave again when the near pool requests an aggregate redemption over the
messenger. End users never call this pool directly; the only authenticated
caller of the withdrawal path is the paired near pool.

*/

package pool

import (
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/lumefi/bridgepool/internal/bridge"
	"github.com/lumefi/bridgepool/internal/ledger"
	"github.com/lumefi/bridgepool/internal/logger"
	"github.com/lumefi/bridgepool/internal/types"
	"github.com/lumefi/bridgepool/internal/yieldsource"
)

// slippageFactor is the flat 0.1% haircut applied once per asset-conversion
// hop when valuing or realizing pool holdings.
var slippageFactor = math.LegacyNewDecWithPrec(999, 3)

// FarPool holds the invested side of the pool pair.
type FarPool struct {
	mu  sync.RWMutex
	log zerolog.Logger

	self     types.Address
	nearPool types.Address
	gasLimit uint64

	token     *ledger.Ledger
	shares    *ledger.Ledger
	source    yieldsource.YieldSource
	gateway   bridge.TokenGateway
	messenger bridge.Sender

	// yieldShares is the pool's position at the yield source.
	yieldShares math.Int

	events []any
}

// FarPoolConfig carries the injected collaborators. All fields are required.
type FarPoolConfig struct {
	Self      types.Address
	NearPool  types.Address
	Token     *ledger.Ledger
	Source    yieldsource.YieldSource
	Gateway   bridge.TokenGateway
	Messenger bridge.Sender
	GasLimit  uint64
}

// NewFarPool creates a far pool with dependency injection.
func NewFarPool(cfg FarPoolConfig) (*FarPool, error) {
	if err := validateFarPoolConfig(cfg); err != nil {
		return nil, fmt.Errorf("far pool configuration validation failed: %w", err)
	}

	return &FarPool{
		log:         logger.GetForComponent("far_pool"),
		self:        cfg.Self,
		nearPool:    cfg.NearPool,
		gasLimit:    cfg.GasLimit,
		token:       cfg.Token,
		shares:      ledger.New("far pool share"),
		source:      cfg.Source,
		gateway:     cfg.Gateway,
		messenger:   cfg.Messenger,
		yieldShares: math.ZeroInt(),
	}, nil
}

func validateFarPoolConfig(cfg FarPoolConfig) error {
	if cfg.Self == "" {
		return fmt.Errorf("pool address cannot be empty")
	}
	if cfg.NearPool == "" {
		return fmt.Errorf("near pool address cannot be empty")
	}
	if cfg.Token == nil {
		return fmt.Errorf("token ledger cannot be nil")
	}
	if cfg.Source == nil {
		return fmt.Errorf("yield source cannot be nil")
	}
	if cfg.Gateway == nil {
		return fmt.Errorf("token gateway cannot be nil")
	}
	if cfg.Messenger == nil {
		return fmt.Errorf("messenger cannot be nil")
	}
	return nil
}

// Address returns the pool's own address.
func (p *FarPool) Address() types.Address { return p.self }

// DepositFrom pulls amount of the base token from holder and invests it,
// minting pool shares to holder by the dilution formula. This is the direct,
// non-bridged entry; the bridged path arrives via Deposit.
func (p *FarPool) DepositFrom(holder types.Address, amount math.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be positive", types.ErrInsufficientBalance)
	}
	if err := p.token.Transfer(holder, p.self, amount); err != nil {
		return err
	}
	return p.investLocked(holder, amount)
}

// Deposit invests the pool's entire held (un-invested) token balance,
// crediting the minted shares to the registered near pool. Permissionless:
// funds can only have arrived via the authenticated bridge path, so sweeping
// them is safe for anyone to trigger.
func (p *FarPool) Deposit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	held := p.token.BalanceOf(p.self)
	if held.IsZero() {
		return fmt.Errorf("%w: not enough balance", types.ErrInsufficientBalance)
	}
	return p.investLocked(p.nearPool, held)
}

// investLocked routes amount (already in pool custody) through the yield
// source and mints pool shares to holder. Share issuance divides by the raw
// (pre-haircut) asset value: the haircut models conversion loss on the way
// out, not dilution on the way in.
func (p *FarPool) investLocked(holder types.Address, amount math.Int) error {
	issued := p.sharesForLocked(amount)

	yieldShares, err := p.source.Invest(amount)
	if err != nil {
		return fmt.Errorf("yield source investment failed: %w", err)
	}
	if err := p.token.Burn(p.self, amount); err != nil {
		return fmt.Errorf("failed to hand custody tokens to yield source: %w", err)
	}
	p.yieldShares = p.yieldShares.Add(yieldShares)

	if err := p.shares.Mint(holder, issued); err != nil {
		return fmt.Errorf("share mint failed: %w", err)
	}

	p.events = append(p.events, types.DepositEvent{
		Holder:       holder,
		Amount:       amount,
		SharesIssued: issued,
		Timestamp:    time.Now(),
	})
	p.log.Info().
		Str("holder", holder.String()).
		Str("amount", amount.String()).
		Str("shares_issued", issued.String()).
		Msg("Deposit invested")
	return nil
}

func (p *FarPool) sharesForLocked(amount math.Int) math.Int {
	total := p.shares.TotalShares()
	raw := p.rawValueLocked()
	if total.IsZero() || raw.IsZero() {
		return amount
	}
	// Truncate so issuance never rounds up against existing holders.
	return math.LegacyNewDecFromInt(amount).
		MulInt(total).
		QuoTruncate(raw).
		TruncateInt()
}

// rawValueLocked is yieldShares x pricePerShare with no haircut.
func (p *FarPool) rawValueLocked() math.LegacyDec {
	return math.LegacyNewDecFromInt(p.yieldShares).Mul(p.source.PricePerShare())
}

// TotalValue returns the pool's net asset value: the raw yield-source value
// with the conversion haircut applied once.
func (p *FarPool) TotalValue() math.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rawValueLocked().Mul(slippageFactor).TruncateInt()
}

// PoolTokenValue returns the haircut-adjusted value of one share. Defined as
// the haircut-adjusted unit value before the first deposit so the quotient is
// total-shares safe.
func (p *FarPool) PoolTokenValue() math.LegacyDec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.poolTokenValueLocked()
}

func (p *FarPool) poolTokenValueLocked() math.LegacyDec {
	total := p.shares.TotalShares()
	if total.IsZero() {
		return slippageFactor
	}
	return p.rawValueLocked().Mul(slippageFactor).QuoInt(total)
}

// ValueFor returns the base-token value of shareAmount at the current pool
// token value.
func (p *FarPool) ValueFor(shareAmount math.Int) math.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return math.LegacyNewDecFromInt(shareAmount).Mul(p.poolTokenValueLocked()).TruncateInt()
}

// TotalShares returns the issued share total.
func (p *FarPool) TotalShares() math.Int { return p.shares.TotalShares() }

// SharesOf returns holder's share balance.
func (p *FarPool) SharesOf(holder types.Address) math.Int { return p.shares.BalanceOf(holder) }

// YieldShareBalance returns the pool's position at the yield source.
func (p *FarPool) YieldShareBalance() math.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.yieldShares
}

// HandleMessage is the messenger callback. Origin authentication is the
// messenger's contract; this handler additionally enforces that the
// authenticated sender is the paired near pool.
func (p *FarPool) HandleMessage(origin types.Address, payload bridge.Payload) error {
	switch msg := payload.(type) {
	case bridge.DepositPayload:
		if origin != p.nearPool {
			return fmt.Errorf("%w: deposit message from %s", types.ErrUnauthenticated, origin)
		}
		return p.receiveBatchDeposit(msg)
	case bridge.WithdrawPayload:
		if origin != p.nearPool {
			return fmt.Errorf("%w: withdraw message from %s", types.ErrUnauthenticated, origin)
		}
		return p.withdraw(msg)
	default:
		return fmt.Errorf("unexpected payload kind %q", payload.Kind())
	}
}

func (p *FarPool) receiveBatchDeposit(msg bridge.DepositPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	held := p.token.BalanceOf(p.self)
	if held.IsZero() {
		return fmt.Errorf("%w: not enough balance", types.ErrInsufficientBalance)
	}
	if !held.Equal(msg.Amount) {
		// Gateway credit and message travel separately; sweep whatever landed.
		p.log.Warn().
			Str("announced", msg.Amount.String()).
			Str("held", held.String()).
			Msg("Batch deposit amount differs from held balance")
	}
	return p.investLocked(p.nearPool, held)
}

// withdraw redeems the aggregate batch stake, pushes the realized tokens
// toward the gateway addressed to the recipient, and reports the realized
// amount back to the near pool for settlement.
func (p *FarPool) withdraw(msg bridge.WithdrawPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !msg.TotalShares.IsPositive() || msg.Shares.GT(msg.TotalShares) {
		return fmt.Errorf("%w: batch %d redeems %s of %s outstanding shares",
			types.ErrInsufficientBalance, msg.BatchID, msg.Shares, msg.TotalShares)
	}
	total := p.shares.TotalShares()
	stake := p.shares.BalanceOf(p.nearPool)
	if total.IsZero() || stake.IsZero() {
		return fmt.Errorf("%w: batch %d redemption against empty stake",
			types.ErrInsufficientBalance, msg.BatchID)
	}

	// The near pool mints its own supply; its stake here backs all of it.
	// The batch is entitled to the Shares/TotalShares slice of that stake.
	localShares := stake.Mul(msg.Shares).Quo(msg.TotalShares)

	yieldSharesToRedeem := localShares.Mul(p.yieldShares).Quo(total)
	redeemed, err := p.source.Redeem(yieldSharesToRedeem)
	if err != nil {
		return fmt.Errorf("yield source redemption failed: %w", err)
	}
	p.yieldShares = p.yieldShares.Sub(yieldSharesToRedeem)

	if err := p.shares.Burn(p.nearPool, localShares); err != nil {
		return fmt.Errorf("share burn failed: %w", err)
	}

	realized := math.LegacyNewDecFromInt(redeemed).Mul(slippageFactor).TruncateInt()
	if err := p.gateway.ReleaseToNear(msg.Recipient, realized); err != nil {
		return fmt.Errorf("gateway release failed: %w", err)
	}

	p.events = append(p.events, types.WithdrawalEvent{
		Recipient: msg.Recipient,
		Amount:    realized,
		Timestamp: time.Now(),
	})
	p.log.Info().
		Uint64("batch_id", uint64(msg.BatchID)).
		Str("shares", msg.Shares.String()).
		Str("local_shares", localShares.String()).
		Str("realized", realized.String()).
		Msg("Batch withdrawal redeemed")

	if err := p.messenger.Send(p.nearPool, bridge.SettlePayload{BatchID: msg.BatchID, Amount: realized}, p.gasLimit); err != nil {
		return fmt.Errorf("settlement message send failed: %w", err)
	}
	return nil
}

// Events returns a snapshot of recorded pool events.
func (p *FarPool) Events() []any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]any(nil), p.events...)
}
