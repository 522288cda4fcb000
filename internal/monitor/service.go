package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/stakepool-price/internal/blockchain"
	"github.com/rovshanmuradov/stakepool-price/internal/blockchain/solbc"
	"github.com/rovshanmuradov/stakepool-price/internal/depeg"
	"github.com/rovshanmuradov/stakepool-price/internal/depeg/splstake"
)

// SplStakePoolProgramID owns every account created by the SPL stake-pool program.
var SplStakePoolProgramID = solana.MustPublicKeyFromBase58("SPoo1Ku8WFXoNDMHPsrGSTSG1Y47rzgn41SLUNakuHy")

const fetchConcurrency = 4

// MetricsRecorder receives per-pool price results.
type MetricsRecorder interface {
	SetVirtualPrice(pool string, price float64)
	RecordExtractionFailure(pool, reason string)
	SetStalePrices(n int)
}

// Recorder persists refresh results.
type Recorder interface {
	SaveSnapshots(ctx context.Context, snaps []Snapshot) error
}

// PoolSource binds a pool to the way its price is derived.
type PoolSource struct {
	Pool   Pool
	Source depeg.Source
}

// Options configures a Service.
type Options struct {
	Precision     *uint256.Int
	VerifyOwner   bool
	AllowedOwners []solana.PublicKey
	HistorySize   int
}

// Service periodically reads stake pool accounts and derives their virtual prices.
type Service struct {
	reader        blockchain.AccountReader
	pools         []PoolSource
	precision     *uint256.Int
	verifyOwner   bool
	allowedOwners map[solana.PublicKey]struct{}

	cache     *PriceCache
	history   *History
	metrics   MetricsRecorder
	recorder  Recorder
	throttler *PriceThrottler
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a price service for the given pools.
func NewService(reader blockchain.AccountReader, pools []PoolSource, opts Options, logger *zap.Logger) (*Service, error) {
	if len(pools) == 0 {
		return nil, errors.New("no pools to monitor")
	}
	if opts.Precision == nil {
		opts.Precision = depeg.NewPrecision(depeg.DefaultPrecision)
	}
	owners := opts.AllowedOwners
	if len(owners) == 0 {
		owners = []solana.PublicKey{SplStakePoolProgramID}
	}
	allowed := make(map[solana.PublicKey]struct{}, len(owners))
	for _, o := range owners {
		allowed[o] = struct{}{}
	}

	logger = logger.Named("price_monitor")
	return &Service{
		reader:        reader,
		pools:         pools,
		precision:     opts.Precision,
		verifyOwner:   opts.VerifyOwner,
		allowedOwners: allowed,
		cache:         NewPriceCache(logger),
		history:       NewHistory(opts.HistorySize),
		logger:        logger,
		now:           time.Now,
	}, nil
}

// SetMetrics attaches a metrics recorder.
func (s *Service) SetMetrics(m MetricsRecorder) { s.metrics = m }

// SetRecorder attaches snapshot persistence.
func (s *Service) SetRecorder(r Recorder) { s.recorder = r }

// SetThrottler attaches UI update delivery.
func (s *Service) SetThrottler(t *PriceThrottler) { s.throttler = t }

// Cache returns the last-known-good price cache.
func (s *Service) Cache() *PriceCache { return s.cache }

// History returns the snapshot history.
func (s *Service) History() *History { return s.history }

// Precision returns the fixed-point scale used for prices.
func (s *Service) Precision() *uint256.Int { return s.precision }

// Refresh fetches every pool account once and returns one snapshot per pool,
// in configuration order. A pool whose price cannot be derived falls back to
// its cached price (marked Stale); Refresh itself only fails when ctx is done.
func (s *Service) Refresh(ctx context.Context) ([]Snapshot, error) {
	accounts, slots, fetchErrs := s.fetchAccounts(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	snaps := make([]Snapshot, len(s.pools))
	stale := 0
	for i, ps := range s.pools {
		snap, reason, err := s.evaluate(ps, accounts[i], fetchErrs[i])
		if reason != "" {
			snap = s.fallback(ps.Pool, reason, err)
			if snap.Stale {
				stale++
			}
		}
		snap.Slot = slots[i]
		snap.UpdatedAt = now
		if reason == "" {
			snap.PricedAt = now
			s.cache.Put(snap)
			if s.metrics != nil {
				f, _ := snap.Decimal.Float64()
				s.metrics.SetVirtualPrice(ps.Pool.Name, f)
			}
		}
		snaps[i] = snap
	}

	if s.metrics != nil {
		s.metrics.SetStalePrices(stale)
	}
	s.history.Add(snaps...)
	return snaps, nil
}

func (s *Service) evaluate(ps PoolSource, acct *rpc.Account, fetchErr error) (Snapshot, string, error) {
	snap := Snapshot{Pool: ps.Pool}
	switch {
	case fetchErr != nil:
		return snap, ReasonRPC, fetchErr
	case acct == nil || acct.Data == nil:
		return snap, ReasonNotFound, solbc.ErrAccountNotFound
	}
	if s.verifyOwner {
		if _, ok := s.allowedOwners[acct.Owner]; !ok {
			return snap, ReasonOwnerMismatch, fmt.Errorf("account owned by %s", acct.Owner)
		}
	}

	data := acct.Data.GetBinary()
	price, err := ps.Source.Compute(data)
	if err != nil {
		return snap, reasonFor(err), err
	}

	if ps.Source.Type() == depeg.TypeSplStake {
		if fields, ferr := splstake.ReadFields(data); ferr == nil {
			snap.Reserve = fields.TotalLamports
			snap.Supply = fields.PoolTokenSupply
		}
	}
	snap.Price = price
	snap.Decimal = depeg.ToDecimal(price, s.precision)
	snap.Available = true
	return snap, "", nil
}

// fallback returns the cached price of pool marked stale, or an unavailable
// snapshot when nothing was cached yet. The caller stamps the current refresh.
func (s *Service) fallback(pool Pool, reason string, err error) Snapshot {
	log := s.logger.With(
		zap.String("pool", pool.Name),
		zap.String("pool_address", pool.Address.String()),
		zap.String("reason", reason),
		zap.Error(err))
	if s.metrics != nil {
		s.metrics.RecordExtractionFailure(pool.Name, reason)
	}

	cached, ok := s.cache.Get(pool.Address.String())
	if !ok {
		log.Warn("Virtual price unavailable")
		return Snapshot{Pool: pool, Reason: reason}
	}
	log.Warn("Virtual price unavailable, using cached value",
		zap.Uint64("cached_price", cached.Price),
		zap.Time("priced_at", cached.PricedAt))
	cached.Stale = true
	cached.Reason = reason
	return cached
}

// fetchAccounts reads all pool accounts in chunks of solbc.MaxAccountsPerRequest.
// A failed chunk marks each of its pools with the chunk error.
func (s *Service) fetchAccounts(ctx context.Context) ([]*rpc.Account, []uint64, []error) {
	n := len(s.pools)
	accounts := make([]*rpc.Account, n)
	slots := make([]uint64, n)
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(fetchConcurrency)
	for start := 0; start < n; start += solbc.MaxAccountsPerRequest {
		end := min(start+solbc.MaxAccountsPerRequest, n)
		g.Go(func() error {
			keys := make([]solana.PublicKey, 0, end-start)
			for _, ps := range s.pools[start:end] {
				keys = append(keys, ps.Pool.Address)
			}
			res, err := s.reader.GetMultipleAccounts(ctx, keys)
			if err == nil && (res == nil || len(res.Value) != len(keys)) {
				err = fmt.Errorf("expected %d accounts in response", len(keys))
			}
			for i := start; i < end; i++ {
				if err != nil {
					errs[i] = err
					continue
				}
				accounts[i] = res.Value[i-start]
				slots[i] = res.Context.Slot
			}
			return nil
		})
	}
	_ = g.Wait()
	return accounts, slots, errs
}

// Run refreshes prices every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	s.logger.Info("Starting price monitor",
		zap.Int("pools", len(s.pools)),
		zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("Price monitor stopped")
			return nil
		case <-ticker.C:
			if s.throttler != nil {
				s.throttler.FlushPending()
			}
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	snaps, err := s.Refresh(ctx)
	if err != nil {
		return
	}
	if s.throttler != nil {
		s.throttler.SendPriceUpdate(PriceUpdate{Snapshots: snaps, At: time.Now()})
	}
	if s.recorder != nil {
		if err := s.recorder.SaveSnapshots(ctx, snaps); err != nil {
			s.logger.Error("Failed to save price snapshots", zap.Error(err))
		}
	}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, splstake.ErrAccountTooShort):
		return ReasonTooShort
	case errors.Is(err, splstake.ErrFieldWidth):
		return ReasonFieldWidth
	case errors.Is(err, splstake.ErrZeroSupply):
		return ReasonZeroSupply
	case errors.Is(err, splstake.ErrMulOverflow):
		return ReasonMulOverflow
	case errors.Is(err, splstake.ErrNarrowOverflow):
		return ReasonNarrow
	case errors.Is(err, splstake.ErrInvalidPrecision):
		return ReasonPrecision
	}
	return ReasonUnknown
}
