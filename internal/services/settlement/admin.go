package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chainvault/internal/models"
	"chainvault/internal/services/ledger"
	"chainvault/internal/services/notifications"
	"chainvault/internal/services/txlog"
	"chainvault/internal/tracing"
	"chainvault/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CreditRequest struct {
	TokenSymbol         string `json:"tokenSymbol"`
	Amount              string `json:"amount"`
	ChainID             string `json:"chainId"`
	SenderWalletAddress string `json:"senderWalletAddress,omitempty"`
	Note                string `json:"note,omitempty"`
}

type DebitRequest struct {
	TokenSymbol string `json:"tokenSymbol"`
	Amount      string `json:"amount"`
	ChainID     string `json:"chainId"`
	Note        string `json:"note,omitempty"`
}

// AdminResult is what an admin adjustment produced. Transaction and
// Notification are nil for the silent variants.
type AdminResult struct {
	Balance      *models.WalletBalanceEntry `json:"balance"`
	Transaction  *models.Transaction        `json:"transaction,omitempty"`
	Notification *models.Notification       `json:"notification,omitempty"`
	Transfer     *models.AdminTransfer      `json:"transfer"`
}

// AdminCredit credits a user and records it as a confirmed receive the user
// is notified about.
func (e *Engine) AdminCredit(ctx context.Context, adminID string, ref models.UserRef, req CreditRequest) (*AdminResult, error) {
	return e.adminCredit(ctx, adminID, ref, req, false)
}

// AdminCreditSilent credits a user without a transaction or a notification.
// Only the admin transfer audit row records it.
func (e *Engine) AdminCreditSilent(ctx context.Context, adminID string, ref models.UserRef, req CreditRequest) (*AdminResult, error) {
	return e.adminCredit(ctx, adminID, ref, req, true)
}

func (e *Engine) adminCredit(ctx context.Context, adminID string, ref models.UserRef, req CreditRequest, silent bool) (res *AdminResult, err error) {
	op := "admin_credit"
	if silent {
		op = "admin_credit_silent"
	}
	ctx, span := tracing.Start(ctx, "settlement", "settlement.AdminCredit", "admin.id", adminID, "user", ref.String(), "silent", fmt.Sprint(silent))
	defer func() { tracing.End(span, err) }()
	defer observe(op, time.Now(), &err)

	user, err := e.store.ResolveUser(ctx, ref)
	if err != nil {
		return nil, err
	}
	chainID := strings.ToLower(strings.TrimSpace(req.ChainID))
	meta, err := e.catalog.Lookup(chainID, req.TokenSymbol)
	if err != nil {
		return nil, err
	}
	amount, err := ledger.ParseTokenAmount(req.Amount, meta.Decimals)
	if err != nil {
		return nil, err
	}
	key := ledger.NewKey(user.WalletID, chainID, req.TokenSymbol)

	err = e.ledger.Within(ctx, []ledger.Key{key}, func(ctx context.Context) error {
		res = &AdminResult{}
		if _, err := e.ledger.EnsureEntry(ctx, key, meta); err != nil {
			return err
		}
		if res.Balance, err = e.ledger.Credit(ctx, key, amount); err != nil {
			return err
		}

		if !silent {
			to, err := e.addresses.WalletAddress(ctx, user.WalletID, chainID)
			if err != nil {
				return err
			}
			from := strings.TrimSpace(req.SenderWalletAddress)
			if from == "" {
				if from, err = e.addresses.Counterparty(chainID); err != nil {
					return err
				}
			}
			res.Transaction, err = e.txlog.Record(ctx, txlog.Entry{
				WalletID: user.WalletID, ChainID: chainID, From: from, To: to,
				Value: amount, TokenSymbol: key.Symbol,
				Type: models.TransactionReceive, Status: models.TransactionConfirmed,
				Extra: models.TransactionExtra{AdminID: adminID, AdminNote: req.Note, AdminInitiated: true},
			})
			if err != nil {
				return err
			}
			res.Notification, err = e.notifier.Notify(ctx, notifications.Notice{
				WalletID:      user.WalletID,
				Category:      models.CategoryTransaction,
				Type:          string(models.TransactionReceive),
				Title:         "Tokens received",
				Description:   fmt.Sprintf("You received %s %s", amount, key.Symbol),
				TransactionID: res.Transaction.ID,
				Metadata:      map[string]any{"chainId": chainID, "from": from},
			})
			if err != nil {
				return err
			}
		}

		res.Transfer, err = e.audit(ctx, adminID, user, key, amount, models.AdminTransferCredit, silent, res.Transaction, req.Note)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logAdmin(op, adminID, user, key, req.Amount)
	events := []models.Event{balanceEvent(user.ID, key)}
	if !silent {
		events = append(events,
			txEvent(models.EventTransactionCreated, user.ID, res.Transaction),
			notificationEvent(user.ID, res.Notification),
		)
	}
	e.publisher.Publish(ctx, events...)
	return res, nil
}

// AdminDebit removes amount from a user without a transaction or a
// notification. It fails with the insufficient balance error like any debit.
func (e *Engine) AdminDebit(ctx context.Context, adminID string, ref models.UserRef, req DebitRequest) (res *AdminResult, err error) {
	ctx, span := tracing.Start(ctx, "settlement", "settlement.AdminDebit", "admin.id", adminID, "user", ref.String())
	defer func() { tracing.End(span, err) }()
	defer observe("admin_debit", time.Now(), &err)

	user, err := e.store.ResolveUser(ctx, ref)
	if err != nil {
		return nil, err
	}
	chainID := strings.ToLower(strings.TrimSpace(req.ChainID))
	meta, err := e.catalog.Lookup(chainID, req.TokenSymbol)
	if err != nil {
		return nil, err
	}
	amount, err := ledger.ParseTokenAmount(req.Amount, meta.Decimals)
	if err != nil {
		return nil, err
	}
	key := ledger.NewKey(user.WalletID, chainID, req.TokenSymbol)

	err = e.ledger.Within(ctx, []ledger.Key{key}, func(ctx context.Context) error {
		res = &AdminResult{}
		if res.Balance, err = e.ledger.Debit(ctx, key, amount); err != nil {
			return err
		}
		res.Transfer, err = e.audit(ctx, adminID, user, key, amount, models.AdminTransferDebit, true, nil, req.Note)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logAdmin("admin_debit", adminID, user, key, req.Amount)
	e.publisher.Publish(ctx, balanceEvent(user.ID, key))
	return res, nil
}

func (e *Engine) audit(ctx context.Context, adminID string, user *models.User, key ledger.Key, amount decimal.Decimal,
	dir models.AdminTransferDirection, silent bool, tx *models.Transaction, note string) (*models.AdminTransfer, error) {
	a := &models.AdminTransfer{
		ID:          utils.NewID("adm"),
		AdminID:     adminID,
		UserID:      user.ID,
		WalletID:    user.WalletID,
		ChainID:     key.ChainID,
		TokenSymbol: key.Symbol,
		Amount:      amount,
		Direction:   dir,
		Silent:      silent,
		Note:        note,
		CreatedAt:   e.now(),
	}
	if tx != nil {
		a.TransactionID = tx.ID
	}
	if err := e.store.InsertAdminTransfer(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (e *Engine) logAdmin(op, adminID string, user *models.User, key ledger.Key, amount string) {
	utils.Logger.WithFields(logrus.Fields{
		"op":       op,
		"admin_id": adminID,
		"user_id":  user.ID,
		"key":      key.String(),
		"amount":   amount,
	}).Info("admin balance adjustment")
}
