package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "tienda/internal/errors"
	"tienda/internal/locks"
	"tienda/internal/models"
	"tienda/internal/money"
	"tienda/internal/pagination"
)

// ledgerService owns the append-only investor ledger and the capital
// operations (deposit, withdraw, reinvest).
type ledgerService struct {
	db    *gorm.DB
	locks *locks.Registry
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB, registry *locks.Registry) LedgerServicer {
	return &ledgerService{db: db, locks: registry}
}

// Record appends one entry inside the caller's transaction. Every delta is
// rounded to two fractional digits before being persisted; reversals rely on
// Round(-x) == -Round(x) holding for half-away-from-zero rounding.
func (s *ledgerService) Record(tx *gorm.DB, investorID string, entryType models.LedgerEntryType, capitalDelta, inventoryDelta, profitDelta decimal.Decimal, referenceType, referenceID, note string) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{
		InvestorID:     investorID,
		EntryType:      entryType,
		CapitalDelta:   money.Round(capitalDelta),
		InventoryDelta: money.Round(inventoryDelta),
		ProfitDelta:    money.Round(profitDelta),
		ReferenceType:  referenceType,
		ReferenceID:    referenceID,
		Note:           note,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return entry, nil
}

// Balances derives an investor's balances from its ledger entries.
func (s *ledgerService) Balances(investorID string) (models.Balances, error) {
	return s.BalancesTx(s.db, investorID)
}

// BalancesTx derives balances inside the caller's transaction. The sum runs
// in Go over decimal values rather than in SQL so no precision is lost to
// driver float conversions.
func (s *ledgerService) BalancesTx(tx *gorm.DB, investorID string) (models.Balances, error) {
	var entries []models.LedgerEntry
	if err := tx.Where("investor_id = ?", investorID).Find(&entries).Error; err != nil {
		return models.Balances{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return models.SumEntries(entries), nil
}

// Entries returns an investor's ledger, newest first.
func (s *ledgerService) Entries(investorID string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error) {
	page.Defaults()

	base := s.db.Model(&models.LedgerEntry{}).Where("investor_id = ?", investorID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var entries []models.LedgerEntry
	if err := base.Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(entries, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// Deposit credits liquid capital.
func (s *ledgerService) Deposit(investorID string, amount decimal.Decimal, note string) (*models.LedgerEntry, error) {
	amount = money.Round(amount)
	if !money.IsPositive(amount) {
		return nil, apperrors.ErrInvalidAmount
	}

	unlock := s.locks.LockInvestor(investorID)
	defer unlock()

	var entry *models.LedgerEntry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.requireInvestor(tx, investorID); err != nil {
			return err
		}
		var txErr error
		entry, txErr = s.Record(tx, investorID, models.EntryCapitalDeposit, amount, decimal.Zero, decimal.Zero, "manual_deposit", investorID, note)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Withdraw debits liquid capital; fails when the amount exceeds the current
// capital balance.
func (s *ledgerService) Withdraw(investorID string, amount decimal.Decimal, note string) (*models.LedgerEntry, error) {
	amount = money.Round(amount)
	if !money.IsPositive(amount) {
		return nil, apperrors.ErrInvalidAmount
	}

	unlock := s.locks.LockInvestor(investorID)
	defer unlock()

	var entry *models.LedgerEntry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.requireInvestor(tx, investorID); err != nil {
			return err
		}
		balances, err := s.BalancesTx(tx, investorID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(balances.Capital) {
			return apperrors.ErrInsufficientCapital
		}
		var txErr error
		entry, txErr = s.Record(tx, investorID, models.EntryCapitalWithdrawal, amount.Neg(), decimal.Zero, decimal.Zero, "manual_withdrawal", investorID, note)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Reinvest moves realized profit into liquid capital without touching
// inventory; fails when the amount exceeds the current profit balance.
func (s *ledgerService) Reinvest(investorID string, amount decimal.Decimal, note string) (*models.LedgerEntry, error) {
	amount = money.Round(amount)
	if !money.IsPositive(amount) {
		return nil, apperrors.ErrInvalidAmount
	}

	unlock := s.locks.LockInvestor(investorID)
	defer unlock()

	var entry *models.LedgerEntry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.requireInvestor(tx, investorID); err != nil {
			return err
		}
		balances, err := s.BalancesTx(tx, investorID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(balances.Profit) {
			return apperrors.ErrInsufficientProfit
		}
		var txErr error
		entry, txErr = s.Record(tx, investorID, models.EntryReinvestment, amount, decimal.Zero, amount.Neg(), "manual_reinvestment", investorID, note)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *ledgerService) requireInvestor(tx *gorm.DB, investorID string) error {
	var investor models.Investor
	if err := tx.Where("id = ?", investorID).First(&investor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrInvestorNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
