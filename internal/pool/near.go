/*

NearPool is the collector end of the bridged pool pair. Deposits mint local
shares and accumulate until the batch transfer period elapses, then sweep to
the far pool in one gateway transfer plus one message. Withdrawals burn shares
immediately into per-epoch vaults; the vault travels
Pending -> InTransit -> Completed as the aggregate redemption round-trips the
bridge, and holders claim their proportional cut of the realized amount.

All mutating operations serialize behind the pool mutex; epoch checks are
evaluated lazily against wall-clock stamps at call time.

*/

package pool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/lumefi/bridgepool/internal/bridge"
	"github.com/lumefi/bridgepool/internal/ledger"
	"github.com/lumefi/bridgepool/internal/logger"
	"github.com/lumefi/bridgepool/internal/types"
)

// NearPool holds the collecting side of the pool pair.
type NearPool struct {
	mu  sync.RWMutex
	log zerolog.Logger

	self     types.Address
	farPool  types.Address
	gasLimit uint64

	token     *ledger.Ledger
	shares    *ledger.Ledger
	bridgeOut bridge.Sender
	bridgeGw  bridge.TokenGateway

	batchTransferPeriod time.Duration
	withdrawalPeriod    time.Duration

	// Pending deposit accumulator: sum of deposits since the last sweep.
	toDeposit         math.Int
	lastDepositMadeAt time.Time

	lastWithdrawalMadeAt time.Time
	nextBatchID          types.BatchID
	currentBatch         *types.WithdrawalVault
	vaults               map[types.BatchID]*types.WithdrawalVault

	// holderStakes[batch][holder] is the holder's unclaimed share stake.
	holderStakes  map[types.BatchID]map[types.Address]math.Int
	holderBatches map[types.Address][]types.BatchID

	events []any

	now func() time.Time
}

// NearPoolConfig carries the injected collaborators and epoch periods.
type NearPoolConfig struct {
	Self                types.Address
	FarPool             types.Address
	Token               *ledger.Ledger
	Messenger           bridge.Sender
	Gateway             bridge.TokenGateway
	BatchTransferPeriod time.Duration
	WithdrawalPeriod    time.Duration
	GasLimit            uint64

	// Clock overrides time.Now in tests. Nil means wall clock.
	Clock func() time.Time
}

// NewNearPool creates a near pool with dependency injection.
func NewNearPool(cfg NearPoolConfig) (*NearPool, error) {
	if err := validateNearPoolConfig(cfg); err != nil {
		return nil, fmt.Errorf("near pool configuration validation failed: %w", err)
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &NearPool{
		log:                  logger.GetForComponent("near_pool"),
		self:                 cfg.Self,
		farPool:              cfg.FarPool,
		gasLimit:             cfg.GasLimit,
		token:                cfg.Token,
		shares:               ledger.New("near pool share"),
		bridgeOut:            cfg.Messenger,
		bridgeGw:             cfg.Gateway,
		batchTransferPeriod:  cfg.BatchTransferPeriod,
		withdrawalPeriod:     cfg.WithdrawalPeriod,
		toDeposit:            math.ZeroInt(),
		lastDepositMadeAt:    now(),
		lastWithdrawalMadeAt: now(),
		nextBatchID:          1,
		vaults:               make(map[types.BatchID]*types.WithdrawalVault),
		holderStakes:         make(map[types.BatchID]map[types.Address]math.Int),
		holderBatches:        make(map[types.Address][]types.BatchID),
		now:                  now,
	}, nil
}

func validateNearPoolConfig(cfg NearPoolConfig) error {
	if cfg.Self == "" {
		return fmt.Errorf("pool address cannot be empty")
	}
	if cfg.FarPool == "" {
		return fmt.Errorf("far pool address cannot be empty")
	}
	if cfg.Token == nil {
		return fmt.Errorf("token ledger cannot be nil")
	}
	if cfg.Messenger == nil {
		return fmt.Errorf("messenger cannot be nil")
	}
	if cfg.Gateway == nil {
		return fmt.Errorf("token gateway cannot be nil")
	}
	if cfg.BatchTransferPeriod <= 0 {
		return fmt.Errorf("batch transfer period must be positive")
	}
	if cfg.WithdrawalPeriod <= 0 {
		return fmt.Errorf("withdrawal period must be positive")
	}
	return nil
}

// Address returns the pool's own address.
func (p *NearPool) Address() types.Address { return p.self }

// Deposit pulls amount of the local token from holder into pool custody,
// mints pool shares and grows the pending deposit accumulator.
func (p *NearPool) Deposit(holder types.Address, amount math.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be positive", types.ErrInsufficientBalance)
	}
	if p.token.BalanceOf(holder).LT(amount) {
		return fmt.Errorf("%w: not enough DAI", types.ErrInsufficientBalance)
	}

	// Issuance is strictly 1:1. Pending un-swept funds earn no yield, and
	// shares backed by already-swept funds are not priced against the
	// accumulator; dividing by it would over-mint late joiners.
	issued := amount

	if err := p.token.Transfer(holder, p.self, amount); err != nil {
		return err
	}
	if err := p.shares.Mint(holder, issued); err != nil {
		return fmt.Errorf("share mint failed: %w", err)
	}

	p.toDeposit = p.toDeposit.Add(amount)
	p.lastDepositMadeAt = p.now()

	p.events = append(p.events, types.DepositEvent{
		Holder:       holder,
		Amount:       amount,
		SharesIssued: issued,
		Timestamp:    p.lastDepositMadeAt,
	})
	p.log.Info().
		Str("holder", holder.String()).
		Str("amount", amount.String()).
		Str("shares_issued", issued.String()).
		Str("to_deposit", p.toDeposit.String()).
		Msg("Deposit accepted")
	return nil
}

// ToDeposit returns the pending deposit accumulator.
func (p *NearPool) ToDeposit() math.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.toDeposit
}

// BatchDepositDue reports whether the batch transfer period has elapsed since
// the last deposit and there is something to sweep.
func (p *NearPool) BatchDepositDue() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.toDeposit.IsPositive() && p.now().Sub(p.lastDepositMadeAt) >= p.batchTransferPeriod
}

// ExecuteBatchDeposit sweeps the entire pending accumulator across the bridge
// to the far pool. Permissionless epoch tick: anyone may call it, and calling
// it with an empty accumulator is a harmless no-op (this is what makes the
// operation idempotent between deposits). Returns the amount swept.
func (p *NearPool) ExecuteBatchDeposit() (math.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	amount := p.toDeposit
	if amount.IsZero() {
		p.log.Debug().Msg("Batch deposit skipped: nothing accumulated")
		return math.ZeroInt(), nil
	}

	// Accumulator reset, custody hand-off and message send are one atomic
	// step under the pool lock.
	p.toDeposit = math.ZeroInt()

	// Funds are credited to the far pool's own account; the paired deposit
	// message tells it to sweep them into the yield source. The epoch timer
	// advances only once the escrow succeeds, so a failed sweep stays due.
	if err := p.bridgeGw.EscrowToFar(p.self, p.farPool, amount); err != nil {
		p.toDeposit = amount
		return math.ZeroInt(), fmt.Errorf("batch deposit escrow failed: %w", err)
	}
	p.lastDepositMadeAt = p.now()
	if err := p.bridgeOut.Send(p.farPool, bridge.DepositPayload{Amount: amount}, p.gasLimit); err != nil {
		return math.ZeroInt(), fmt.Errorf("batch deposit message send failed: %w", err)
	}

	p.events = append(p.events, types.BatchDepositExecutedEvent{Amount: amount, Timestamp: p.now()})
	p.log.Info().Str("amount", amount.String()).Msg("Batch deposit executed")
	return amount, nil
}

// RequestWithdrawal burns shareAmount of holder's shares immediately and
// enrolls them in the current epoch's withdrawal vault. There is no
// cancellation path.
func (p *NearPool) RequestWithdrawal(holder types.Address, shareAmount math.Int) (types.BatchID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if shareAmount.IsNil() || !shareAmount.IsPositive() {
		return 0, fmt.Errorf("%w: withdrawal amount must be positive", types.ErrInsufficientBalance)
	}
	if err := p.shares.Burn(holder, shareAmount); err != nil {
		return 0, err
	}

	vault := p.openVaultLocked()
	vault.UnclaimedShares = vault.UnclaimedShares.Add(shareAmount)

	stakes := p.holderStakes[vault.ID]
	existing, enrolled := stakes[holder]
	if !enrolled {
		existing = math.ZeroInt()
		p.holderBatches[holder] = append(p.holderBatches[holder], vault.ID)
	}
	stakes[holder] = existing.Add(shareAmount)

	p.log.Info().
		Str("holder", holder.String()).
		Str("shares", shareAmount.String()).
		Uint64("batch_id", uint64(vault.ID)).
		Msg("Withdrawal requested")
	return vault.ID, nil
}

// openVaultLocked returns the current Pending vault, creating one if the
// previous batch already went in transit.
func (p *NearPool) openVaultLocked() *types.WithdrawalVault {
	if p.currentBatch != nil {
		return p.currentBatch
	}

	vault := &types.WithdrawalVault{
		ID:              p.nextBatchID,
		UnclaimedShares: math.ZeroInt(),
		OriginalShares:  math.ZeroInt(),
		TokenBalance:    math.ZeroInt(),
		Status:          types.TransferPending,
	}
	p.nextBatchID++
	p.vaults[vault.ID] = vault
	p.holderStakes[vault.ID] = make(map[types.Address]math.Int)
	p.currentBatch = vault

	p.log.Debug().Uint64("batch_id", uint64(vault.ID)).Msg("Opened new withdrawal vault")
	return vault
}

// BatchWithdrawalDue reports whether the withdrawal period has elapsed and an
// open vault holds burned shares.
func (p *NearPool) BatchWithdrawalDue() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentBatch != nil &&
		p.currentBatch.UnclaimedShares.IsPositive() &&
		p.now().Sub(p.lastWithdrawalMadeAt) >= p.withdrawalPeriod
}

// ExecuteBatchWithdrawal moves the current vault in transit and sends the
// aggregate redemption request to the far pool. Permissionless, but gated on
// the withdrawal period.
func (p *NearPool) ExecuteBatchWithdrawal() (types.BatchID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.now().Sub(p.lastWithdrawalMadeAt) < p.withdrawalPeriod {
		return 0, fmt.Errorf("%w: can not execute batch withdrawal yet", types.ErrNotYetDue)
	}
	vault := p.currentBatch
	if vault == nil || vault.UnclaimedShares.IsZero() {
		return 0, fmt.Errorf("%w: no withdrawal requests in current batch", types.ErrNotYetDue)
	}

	vault.Status = types.TransferInTransit
	p.currentBatch = nil
	p.lastWithdrawalMadeAt = p.now()

	// Supply is measured as if the batch's burned shares were still
	// outstanding; they were part of it when the requests were priced.
	payload := bridge.WithdrawPayload{
		BatchID:     vault.ID,
		Shares:      vault.UnclaimedShares,
		TotalShares: p.shares.TotalShares().Add(vault.UnclaimedShares),
		Recipient:   p.self,
	}
	if err := p.bridgeOut.Send(p.farPool, payload, p.gasLimit); err != nil {
		return 0, fmt.Errorf("batch withdrawal message send failed: %w", err)
	}

	p.events = append(p.events, types.BatchWithdrawalExecutedEvent{
		BatchID:   vault.ID,
		Shares:    vault.UnclaimedShares,
		Timestamp: p.now(),
	})
	p.log.Info().
		Uint64("batch_id", uint64(vault.ID)).
		Str("shares", vault.UnclaimedShares.String()).
		Msg("Batch withdrawal executed")
	return vault.ID, nil
}

// HandleMessage is the messenger callback carrying batch settlements from the
// far pool.
func (p *NearPool) HandleMessage(origin types.Address, payload bridge.Payload) error {
	settle, ok := payload.(bridge.SettlePayload)
	if !ok {
		return fmt.Errorf("unexpected payload kind %q", payload.Kind())
	}
	if origin != p.farPool {
		return fmt.Errorf("%w: settlement from %s", types.ErrUnauthenticated, origin)
	}
	return p.SettleBatch(settle.BatchID, settle.Amount)
}

// SettleBatch completes an in-transit vault with its realized token amount.
// Duplicate settlement of a Completed vault is a silent no-op: the messenger
// guarantees at-least-once delivery, so redelivery must never double-credit.
func (p *NearPool) SettleBatch(batchID types.BatchID, realized math.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	vault, ok := p.vaults[batchID]
	if !ok {
		return fmt.Errorf("%w: batch %d", types.ErrUnknownBatch, batchID)
	}
	if vault.Status == types.TransferCompleted {
		p.log.Warn().Uint64("batch_id", uint64(batchID)).Msg("Duplicate settlement ignored")
		return nil
	}
	if vault.Status != types.TransferInTransit {
		return fmt.Errorf("batch %d is %s, expected InTransit", batchID, vault.Status)
	}

	vault.TokenBalance = realized
	vault.OriginalShares = vault.UnclaimedShares
	vault.Status = types.TransferCompleted

	p.events = append(p.events, types.BatchSettledEvent{
		BatchID:   batchID,
		Realized:  realized,
		Timestamp: p.now(),
	})
	p.log.Info().
		Uint64("batch_id", uint64(batchID)).
		Str("realized", realized.String()).
		Msg("Batch settled")
	return nil
}

// ClaimWithdrawal pays out holder's proportional cut of a completed batch.
// The denominator is the vault's original unclaimed-share total, fixed at
// settlement, so earlier claims never skew later ones.
func (p *NearPool) ClaimWithdrawal(holder types.Address, batchID types.BatchID) (math.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	vault, ok := p.vaults[batchID]
	if !ok {
		return math.ZeroInt(), fmt.Errorf("%w: batch %d", types.ErrUnknownBatch, batchID)
	}
	if vault.Status != types.TransferCompleted {
		return math.ZeroInt(), fmt.Errorf("%w: batch %d is %s", types.ErrNotClaimable, batchID, vault.Status)
	}
	stake := p.stakeLocked(holder, batchID)
	if stake.IsZero() {
		return math.ZeroInt(), fmt.Errorf("%w: no unclaimed shares in batch %d", types.ErrNotClaimable, batchID)
	}

	payout := math.ZeroInt()
	if vault.OriginalShares.IsPositive() {
		payout = stake.Mul(vault.TokenBalance).Quo(vault.OriginalShares)
	}

	p.holderStakes[batchID][holder] = math.ZeroInt()
	vault.UnclaimedShares = vault.UnclaimedShares.Sub(stake)

	if payout.IsPositive() {
		if err := p.token.Transfer(p.self, holder, payout); err != nil {
			return math.ZeroInt(), fmt.Errorf("claim payout transfer failed: %w", err)
		}
	}

	p.events = append(p.events, types.ClaimEvent{
		Holder:    holder,
		BatchID:   batchID,
		Payout:    payout,
		Timestamp: p.now(),
	})
	p.log.Info().
		Str("holder", holder.String()).
		Uint64("batch_id", uint64(batchID)).
		Str("payout", payout.String()).
		Msg("Withdrawal claimed")
	return payout, nil
}

// --- read projections, side-effect free ---

// SharesOf returns holder's live share balance.
func (p *NearPool) SharesOf(holder types.Address) math.Int { return p.shares.BalanceOf(holder) }

// TotalShares returns the issued share total.
func (p *NearPool) TotalShares() math.Int { return p.shares.TotalShares() }

// WithdrawalsForAddress lists the batch ids holder has participated in, in
// enrollment order.
func (p *NearPool) WithdrawalsForAddress(holder types.Address) []types.BatchID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]types.BatchID(nil), p.holderBatches[holder]...)
}

// WithdrawableBalance returns holder's unclaimed share stake in a batch.
func (p *NearPool) WithdrawableBalance(holder types.Address, batchID types.BatchID) math.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stakeLocked(holder, batchID)
}

// HasClaimableWithdrawal reports whether holder can claim from a batch now.
func (p *NearPool) HasClaimableWithdrawal(holder types.Address, batchID types.BatchID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	vault, ok := p.vaults[batchID]
	if !ok || vault.Status != types.TransferCompleted {
		return false
	}
	return p.stakeLocked(holder, batchID).IsPositive()
}

// WithdrawalVault returns a copy of the vault ledger entry.
func (p *NearPool) WithdrawalVault(batchID types.BatchID) (types.WithdrawalVault, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	vault, ok := p.vaults[batchID]
	if !ok {
		return types.WithdrawalVault{}, fmt.Errorf("%w: batch %d", types.ErrUnknownBatch, batchID)
	}
	return *vault, nil
}

// Vaults returns copies of every vault, ordered by batch id. Used by the
// journal and the web API.
func (p *NearPool) Vaults() []types.WithdrawalVault {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]types.WithdrawalVault, 0, len(p.vaults))
	for _, vault := range p.vaults {
		out = append(out, *vault)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *NearPool) stakeLocked(holder types.Address, batchID types.BatchID) math.Int {
	stakes, ok := p.holderStakes[batchID]
	if !ok {
		return math.ZeroInt()
	}
	stake, ok := stakes[holder]
	if !ok {
		return math.ZeroInt()
	}
	return stake
}

// Events returns a snapshot of recorded pool events.
func (p *NearPool) Events() []any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]any(nil), p.events...)
}
