package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/harborlight/grantflow/internal/model"
)

// ParseBudgets converts a raw budget report blob into validated budgets.
// Rows missing a class id or with unparseable dates are skipped with a
// logged warning rather than aborting the whole report.
func ParseBudgets(data []byte, logger *slog.Logger) ([]model.Budget, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var report budgetReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode budget report: %w", err)
	}

	budgets := make([]model.Budget, 0, len(report.Budgets))
	for _, raw := range report.Budgets {
		if raw.ClassID == "" || raw.ClassName == "" {
			logger.Warn("skipping budget row without a class reference",
				"class_id", raw.ClassID,
				"class_name", raw.ClassName)
			continue
		}

		start, err := time.Parse(dateLayout, raw.StartDate)
		if err != nil {
			logger.Warn("skipping budget row with malformed start date",
				"class_name", raw.ClassName,
				"start_date", raw.StartDate)
			continue
		}
		end, err := time.Parse(dateLayout, raw.EndDate)
		if err != nil {
			logger.Warn("skipping budget row with malformed end date",
				"class_name", raw.ClassName,
				"end_date", raw.EndDate)
			continue
		}

		budget := model.Budget{
			ClassID:   raw.ClassID,
			ClassName: raw.ClassName,
			StartDate: start,
			EndDate:   end,
		}
		for _, line := range raw.Lines {
			if line.AccountName == "" {
				logger.Warn("skipping budget line without an account name",
					"class_name", raw.ClassName,
					"account_id", line.AccountID)
				continue
			}
			budget.Lines = append(budget.Lines, model.BudgetLine{
				AccountID:   line.AccountID,
				AccountName: line.AccountName,
				AccountType: line.AccountType,
				Amount:      line.Amount,
			})
		}
		budgets = append(budgets, budget)
	}

	return budgets, nil
}

// ParseTransactions flattens a raw purchase report blob into one validated
// transaction per account-based expense line. Purchases without an id or
// date, and lines without an id or account, are skipped with a warning.
// Non-expense detail lines (item-based, deposits) are silently ignored.
func ParseTransactions(data []byte, logger *slog.Logger) ([]model.Transaction, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var report purchaseReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode purchase report: %w", err)
	}

	var txns []model.Transaction
	for _, raw := range report.Purchases {
		if raw.ID == "" {
			logger.Warn("skipping purchase row without an id",
				"vendor_name", raw.VendorName,
				"txn_date", raw.TxnDate)
			continue
		}

		date, err := time.Parse(dateLayout, raw.TxnDate)
		if err != nil {
			logger.Warn("skipping purchase row with malformed date",
				"purchase_id", raw.ID,
				"txn_date", raw.TxnDate)
			continue
		}

		for _, line := range raw.Lines {
			if line.DetailType != model.ExpenseLineDetail {
				continue
			}
			if line.ID == "" || line.AccountName == "" {
				logger.Warn("skipping purchase line without id or account",
					"purchase_id", raw.ID,
					"line_id", line.ID,
					"account_name", line.AccountName)
				continue
			}
			txns = append(txns, model.Transaction{
				Date:        date,
				PurchaseID:  raw.ID,
				LineID:      line.ID,
				SyncToken:   raw.SyncToken,
				VendorName:  raw.VendorName,
				AccountName: line.AccountName,
				AccountID:   line.AccountID,
				ClassID:     line.ClassID,
				ClassName:   line.ClassName,
				Amount:      line.Amount,
			})
		}
	}

	return txns, nil
}

// ParseClasses converts a raw class list blob into validated classes.
func ParseClasses(data []byte, logger *slog.Logger) ([]model.Class, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var report classReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode class report: %w", err)
	}

	classes := make([]model.Class, 0, len(report.Classes))
	for _, raw := range report.Classes {
		if raw.ID == "" || raw.Name == "" {
			logger.Warn("skipping class row without id or name",
				"class_id", raw.ID,
				"class_name", raw.Name)
			continue
		}
		classes = append(classes, model.Class{
			ID:     raw.ID,
			Name:   raw.Name,
			Active: raw.Active,
		})
	}

	return classes, nil
}
