package services

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "tienda/internal/errors"
	"tienda/internal/models"
	"tienda/internal/money"
)

// allocationService consumes and restores investor assignment lots when sales
// are confirmed and voided. It runs entirely inside the caller's transaction;
// the sale service is responsible for locking and state transitions.
type allocationService struct {
	ledger LedgerServicer
}

// NewAllocationService creates a new AllocationServicer.
func NewAllocationService(ledger LedgerServicer) AllocationServicer {
	return &allocationService{ledger: ledger}
}

// AllocateSale distributes a confirmed sale's revenue, cost and commission
// across assignment lots oldest-created-first. Quantity not covered by any
// lot is house-owned stock and produces no ledger activity.
func (s *allocationService) AllocateSale(tx *gorm.DB, sale *models.Sale) error {
	commissionTotal := cardCommissionTotal(sale.Payments)

	for i := range sale.Lines {
		line := &sale.Lines[i]

		var lots []models.InvestorAssignment
		if err := tx.Where("product_id = ?", line.ProductID).
			Order("created_at ASC, id ASC").
			Find(&lots).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		netRevenue := lineNetRevenue(line)
		remaining := line.Qty

		for j := range lots {
			if !money.IsPositive(remaining) {
				break
			}
			lot := &lots[j]
			available := lot.QtyAvailable()
			if !money.IsPositive(available) {
				continue
			}

			consumed := decimal.Min(available, remaining)
			remaining = remaining.Sub(consumed)

			lot.QtySold = lot.QtySold.Add(consumed)
			if err := tx.Model(lot).Update("qty_sold", lot.QtySold).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}

			ratio := consumed.Div(line.Qty)
			proportionalRevenue := money.Round(netRevenue.Mul(ratio))
			proportionalCost := money.Round(lot.UnitCost.Mul(consumed))
			proportionalCommission := money.Round(commissionTotal.Mul(ratio))
			netProfit := proportionalRevenue.Sub(proportionalCost).Sub(proportionalCommission)
			investorShare := money.Round(netProfit.Div(decimal.NewFromInt(2)))

			if _, err := s.ledger.Record(tx, lot.InvestorID, models.EntryInventoryToCapital,
				proportionalCost, proportionalCost.Neg(), decimal.Zero,
				"sale", sale.ID, "Cost recovery on sale"); err != nil {
				return err
			}
			if _, err := s.ledger.Record(tx, lot.InvestorID, models.EntryProfitShare,
				decimal.Zero, decimal.Zero, investorShare,
				"sale", sale.ID, "Profit share on sale"); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReverseSale undoes a sale's allocation by walking lots newest-created-first
// and emitting the exact negation of each contribution's entries. Reversal
// entries carry the sale_void reference type so they stay distinguishable
// from originals.
func (s *allocationService) ReverseSale(tx *gorm.DB, sale *models.Sale) error {
	commissionTotal := cardCommissionTotal(sale.Payments)

	for i := range sale.Lines {
		line := &sale.Lines[i]

		var lots []models.InvestorAssignment
		if err := tx.Where("product_id = ?", line.ProductID).
			Order("created_at DESC, id DESC").
			Find(&lots).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		netRevenue := lineNetRevenue(line)
		remaining := line.Qty

		for j := range lots {
			if !money.IsPositive(remaining) {
				break
			}
			lot := &lots[j]
			if !money.IsPositive(lot.QtySold) {
				continue
			}

			reversed := decimal.Min(lot.QtySold, remaining)
			remaining = remaining.Sub(reversed)

			lot.QtySold = lot.QtySold.Sub(reversed)
			if err := tx.Model(lot).Update("qty_sold", lot.QtySold).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}

			ratio := reversed.Div(line.Qty)
			proportionalRevenue := money.Round(netRevenue.Mul(ratio))
			proportionalCost := money.Round(lot.UnitCost.Mul(reversed))
			proportionalCommission := money.Round(commissionTotal.Mul(ratio))
			netProfit := proportionalRevenue.Sub(proportionalCost).Sub(proportionalCommission)
			investorShare := money.Round(netProfit.Div(decimal.NewFromInt(2)))

			if _, err := s.ledger.Record(tx, lot.InvestorID, models.EntryInventoryToCapital,
				proportionalCost.Neg(), proportionalCost, decimal.Zero,
				"sale_void", sale.ID, "Cost recovery reversal"); err != nil {
				return err
			}
			if _, err := s.ledger.Record(tx, lot.InvestorID, models.EntryProfitShare,
				decimal.Zero, decimal.Zero, investorShare.Neg(),
				"sale_void", sale.ID, "Profit share reversal"); err != nil {
				return err
			}
		}
	}
	return nil
}

// lineNetRevenue is the line's revenue after its percentage discount.
func lineNetRevenue(line *models.SaleLine) decimal.Decimal {
	gross := line.Qty.Mul(line.UnitPrice)
	discountFactor := decimal.NewFromInt(1).Sub(line.DiscountPct.Div(decimal.NewFromInt(100)))
	return gross.Mul(discountFactor)
}

// cardCommissionTotal sums amount x commission rate over card payments.
func cardCommissionTotal(payments []models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Method == models.PaymentCard {
			total = total.Add(p.Amount.Mul(p.CommissionRate))
		}
	}
	return total
}
