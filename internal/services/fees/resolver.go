// Package fees resolves the fee a user pays for a token on a chain.
package fees

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainvault/internal/errs"
	"chainvault/internal/metrics"
	"chainvault/internal/models"
	"chainvault/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Store interface {
	GetFeeOverride(ctx context.Context, userID, tokenSymbol, chainID string) (*models.FeeOverride, error)
	UpsertFeeOverride(ctx context.Context, f *models.FeeOverride) error
	DeleteFeeOverride(ctx context.Context, userID, tokenSymbol, chainID string) (bool, error)
}

// Cache holds override lookups. A hit with a nil override is a cached absence.
type Cache interface {
	Get(ctx context.Context, userID, tokenSymbol, chainID string) (f *models.FeeOverride, hit bool, err error)
	Set(ctx context.Context, userID, tokenSymbol, chainID string, f *models.FeeOverride) error
	Delete(ctx context.Context, userID, tokenSymbol, chainID string) error
}

type Resolver struct {
	store Store
	cache Cache
	now   func() time.Time
}

type Option func(*Resolver)

func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func normalize(symbol, chainID string) (string, string) {
	return strings.ToUpper(strings.TrimSpace(symbol)), strings.ToLower(strings.TrimSpace(chainID))
}

// ResolveFee returns the user's override verbatim when one exists, otherwise
// the deterministic default of (tokenSymbol, chainID).
func (r *Resolver) ResolveFee(ctx context.Context, userID, tokenSymbol, chainID string) (models.FeeQuote, error) {
	tokenSymbol, chainID = normalize(tokenSymbol, chainID)

	override, err := r.lookup(ctx, userID, tokenSymbol, chainID)
	if err != nil {
		return models.FeeQuote{}, err
	}
	if override != nil {
		return models.FeeQuote{
			FeeAmount:      override.FeeAmount,
			FeePercentage:  override.FeePercentage,
			IsUserSpecific: true,
		}, nil
	}

	amount, pct := DefaultQuote(tokenSymbol, chainID)
	return models.FeeQuote{
		FeeAmount:     amount.StringFixed(4),
		FeePercentage: pct.StringFixed(2),
	}, nil
}

func (r *Resolver) lookup(ctx context.Context, userID, tokenSymbol, chainID string) (*models.FeeOverride, error) {
	if r.cache != nil {
		f, hit, err := r.cache.Get(ctx, userID, tokenSymbol, chainID)
		switch {
		case err != nil:
			metrics.FeeCacheLookups.WithLabelValues("error").Inc()
			utils.Logger.WithError(err).Warn("fee cache read failed, falling back to store")
		case hit:
			metrics.FeeCacheLookups.WithLabelValues("hit").Inc()
			return f, nil
		default:
			metrics.FeeCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	f, err := r.store.GetFeeOverride(ctx, userID, tokenSymbol, chainID)
	if errors.Is(err, errs.ErrNotFound) {
		f, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, userID, tokenSymbol, chainID, f); err != nil {
			utils.Logger.WithError(err).Warn("fee cache write failed")
		}
	}
	return f, nil
}

// UpsertOverride stores an admin fee for one user, token and chain.
func (r *Resolver) UpsertOverride(ctx context.Context, adminID, userID, tokenSymbol, chainID, feeAmount, feePercentage string) (*models.FeeOverride, error) {
	tokenSymbol, chainID = normalize(tokenSymbol, chainID)
	if userID == "" || tokenSymbol == "" || chainID == "" {
		return nil, fmt.Errorf("userId, tokenSymbol and chainId are required: %w", errs.ErrInvalidInput)
	}
	amount, err := checkNonNegative(feeAmount)
	if err != nil {
		return nil, err
	}
	pct, err := checkNonNegative(feePercentage)
	if err != nil {
		return nil, err
	}

	f := &models.FeeOverride{
		UserID:        userID,
		TokenSymbol:   tokenSymbol,
		ChainID:       chainID,
		FeeAmount:     amount,
		FeePercentage: pct,
		UpdatedBy:     adminID,
		UpdatedAt:     r.now(),
	}
	if err := r.store.UpsertFeeOverride(ctx, f); err != nil {
		return nil, err
	}
	r.invalidate(ctx, userID, tokenSymbol, chainID)

	utils.Logger.WithFields(logrus.Fields{
		"admin_id": adminID,
		"user_id":  userID,
		"token":    tokenSymbol,
		"chain":    chainID,
	}).Info("fee override updated")
	return f, nil
}

func (r *Resolver) DeleteOverride(ctx context.Context, userID, tokenSymbol, chainID string) error {
	tokenSymbol, chainID = normalize(tokenSymbol, chainID)
	deleted, err := r.store.DeleteFeeOverride(ctx, userID, tokenSymbol, chainID)
	if err != nil {
		return err
	}
	r.invalidate(ctx, userID, tokenSymbol, chainID)
	if !deleted {
		return fmt.Errorf("fee override %s/%s/%s: %w", userID, tokenSymbol, chainID, errs.ErrNotFound)
	}
	return nil
}

func (r *Resolver) invalidate(ctx context.Context, userID, tokenSymbol, chainID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, userID, tokenSymbol, chainID); err != nil {
		utils.Logger.WithError(err).Warn("fee cache invalidation failed")
	}
}

// checkNonNegative validates s as a non-negative decimal and returns it
// trimmed but otherwise untouched.
func checkNonNegative(s string) (string, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return "", fmt.Errorf("fee value %q must be a non-negative decimal: %w", s, errs.ErrInvalidInput)
	}
	return s, nil
}
