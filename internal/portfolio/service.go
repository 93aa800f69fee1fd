package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tomasdev42/crypto-portfolio/internal/apperr"
	"github.com/tomasdev42/crypto-portfolio/internal/identity"
	"github.com/tomasdev42/crypto-portfolio/internal/market"
	"github.com/tomasdev42/crypto-portfolio/internal/metrics"
)

const defaultFetchConcurrency = 5

var (
	errAddFields      = apperr.New(apperr.ErrValidation, "Please enter a valid coin and amount.")
	errAddAmount      = apperr.New(apperr.ErrValidation, "Please enter a valid holding amount.")
	errAddNegative    = apperr.New(apperr.ErrValidation, "Please enter a positive holding amount.")
	errInvalidCoin    = apperr.New(apperr.ErrInvalidCoin, "Invalid coin ID")
	errCoinIDRequired = apperr.New(apperr.ErrValidation, "Coin ID is required.")
	errCoinNotHeld    = apperr.New(apperr.ErrNotFound, "Coin not found within portfolio")
	errDeleteFailed   = apperr.New(apperr.ErrNotFound, "Coin deletion failed or already removed from portfolio")
	errEditFields     = apperr.New(apperr.ErrValidation, "Coin ID and Edited Amount are required.")
	errEditAmount     = apperr.New(apperr.ErrValidation, "Invalid amount. Please provide a non-negative number.")
	errAmountRange    = apperr.New(apperr.ErrValidation, "Amount is out of range.")
)

// Amount bounds. Parsing accepts arbitrary exponents, so anything outside
// these is rejected before the value is expanded anywhere.
const (
	maxAmountDigits         = 64
	maxAmountIntegerDigits  = 30
	maxAmountFractionDigits = 18
)

// Mutation kinds reported to metrics.
const (
	MutationAdd    = "add"
	MutationEdit   = "edit"
	MutationDelete = "delete"
)

// UserFinder resolves user ids.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (identity.User, error)
}

// Publisher receives a HoldingsChanged event after every mutation.
type Publisher interface {
	PublishHoldingsChanged(ctx context.Context, event HoldingsChanged) error
}

// Service is the portfolio valuation engine: it manages holdings, values them
// against live quotes and records valuation history.
type Service struct {
	repo        Repository
	users       UserFinder
	quotes      market.Quoter
	publisher   Publisher
	metrics     *metrics.Collectors
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewService wires the valuation engine. publisher and m may be nil.
func NewService(repo Repository, users UserFinder, quotes market.Quoter, publisher Publisher, m *metrics.Collectors, concurrency int, logger *slog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		users:       users,
		quotes:      quotes,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Holdings returns the user's holdings. An empty list is a valid result.
func (s *Service) Holdings(ctx context.Context, userID string) ([]Holding, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.Holdings(ctx, userID)
}

// Snapshots returns the user's valuation history as stored.
func (s *Service) Snapshots(ctx context.Context, userID string) ([]Snapshot, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.Snapshots(ctx, userID)
}

// AddCoin adds a new holding of coinID. amount is the client supplied text.
func (s *Service) AddCoin(ctx context.Context, userID, coinID, amount string) (Holding, error) {
	coinID = strings.TrimSpace(coinID)
	amount = strings.TrimSpace(amount)
	if coinID == "" || amount == "" {
		return Holding{}, errAddFields
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return Holding{}, errAddAmount
	}
	if value, err = boundAmount(value); err != nil {
		return Holding{}, err
	}
	if value.IsNegative() {
		return Holding{}, errAddNegative
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return Holding{}, err
	}

	exists, err := s.quotes.CoinExists(ctx, coinID)
	if err != nil {
		return Holding{}, fmt.Errorf("validate coin %s: %w", coinID, err)
	}
	if !exists {
		return Holding{}, errInvalidCoin
	}

	holding := Holding{CoinID: coinID, Amount: value, AddedAt: s.now().UTC()}
	if err := s.repo.AddHolding(ctx, userID, holding); err != nil {
		return Holding{}, err
	}
	s.metrics.HoldingMutated(MutationAdd)
	s.notify(ctx, userID)
	return holding, nil
}

// DeleteCoin removes the holding of coinID and returns the remaining holdings.
func (s *Service) DeleteCoin(ctx context.Context, userID, coinID string) ([]Holding, error) {
	coinID = strings.TrimSpace(coinID)
	if coinID == "" {
		return nil, errCoinIDRequired
	}
	holdings, err := s.Holdings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !contains(holdings, coinID) {
		return nil, errCoinNotHeld
	}

	removed, err := s.repo.RemoveHolding(ctx, userID, coinID)
	if err != nil {
		return nil, err
	}
	if removed == 0 {
		return nil, errDeleteFailed
	}

	remaining, err := s.repo.Holdings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if contains(remaining, coinID) {
		return nil, errDeleteFailed
	}
	if len(remaining) == 0 {
		remaining = []Holding{}
	}
	s.metrics.HoldingMutated(MutationDelete)
	s.publish(ctx, HoldingsChanged{UserID: userID, Holdings: remaining})
	return remaining, nil
}

// EditCoin replaces the amount of an existing holding and returns the
// updated holdings.
func (s *Service) EditCoin(ctx context.Context, userID, coinID, amount string) ([]Holding, error) {
	coinID = strings.TrimSpace(coinID)
	amount = strings.TrimSpace(amount)
	if coinID == "" || amount == "" {
		return nil, errEditFields
	}
	value, err := decimal.NewFromString(amount)
	if err != nil || value.IsNegative() {
		return nil, errEditAmount
	}
	if value, err = boundAmount(value); err != nil {
		return nil, err
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAmount(ctx, userID, coinID, value); err != nil {
		return nil, err
	}

	holdings, err := s.repo.Holdings(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.metrics.HoldingMutated(MutationEdit)
	s.publish(ctx, HoldingsChanged{UserID: userID, Holdings: holdings})
	return holdings, nil
}

// ComputeTotalValue sums amount × USD price over the user's holdings. Quotes
// are fetched concurrently; a coin whose quote fails contributes zero.
func (s *Service) ComputeTotalValue(ctx context.Context, userID string) (decimal.Decimal, error) {
	holdings, err := s.Holdings(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	values := make([]decimal.Decimal, len(holdings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, h := range holdings {
		g.Go(func() error {
			price, err := s.quotes.USDPrice(gctx, h.CoinID)
			if err != nil {
				s.metrics.QuoteFailed()
				s.logger.Warn("quote unavailable, counting as zero",
					slog.String("user_id", userID),
					slog.String("coin_id", h.CoinID),
					slog.Any("error", err))
				values[i] = decimal.Zero
				return nil
			}
			values[i] = h.Amount.Mul(price)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decimal.Zero, err
	}
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total, nil
}

// RecordSnapshot values the user's holdings and appends the total to the
// valuation history.
func (s *Service) RecordSnapshot(ctx context.Context, userID string) (Snapshot, error) {
	total, err := s.ComputeTotalValue(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot := Snapshot{Timestamp: s.now().UTC(), Value: total}
	if err := s.repo.AppendSnapshot(ctx, userID, snapshot); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

func (s *Service) ensureUser(ctx context.Context, userID string) error {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// notify publishes the current holdings of userID.
func (s *Service) notify(ctx context.Context, userID string) {
	if s.publisher == nil {
		return
	}
	holdings, err := s.repo.Holdings(ctx, userID)
	if err != nil {
		s.logger.Warn("read holdings for notification failed", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	s.publish(ctx, HoldingsChanged{UserID: userID, Holdings: holdings})
}

func (s *Service) publish(ctx context.Context, event HoldingsChanged) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishHoldingsChanged(ctx, event); err != nil {
		s.logger.Warn("publish holdings change failed", slog.String("user_id", event.UserID), slog.Any("error", err))
	}
}

// boundAmount rejects amounts with too many digits or more than
// maxAmountIntegerDigits before the point, and rounds the rest to
// maxAmountFractionDigits decimals.
func boundAmount(value decimal.Decimal) (decimal.Decimal, error) {
	exp := value.Exponent()
	digits := value.NumDigits()
	if digits > maxAmountDigits || exp > maxAmountDigits || exp < -maxAmountDigits {
		return decimal.Zero, errAmountRange
	}
	if digits+int(exp) > maxAmountIntegerDigits {
		return decimal.Zero, errAmountRange
	}
	return value.Round(maxAmountFractionDigits), nil
}

func contains(holdings []Holding, coinID string) bool {
	for _, h := range holdings {
		if h.CoinID == coinID {
			return true
		}
	}
	return false
}
