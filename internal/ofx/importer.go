package ofx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/ledger"
	"github.com/Veraticus/tally/internal/metrics"
	"github.com/Veraticus/tally/internal/model"
)

// importNamespace seeds the deterministic IDs of imported transactions, so
// importing the same statement twice finds the first copy.
var importNamespace = uuid.MustParse("6f1d3c8e-2b7a-4c59-9e0d-5a4b3c2d1e0f")

// ImportOptions says where statement entries land in the ledger.
type ImportOptions struct {
	AccountID         string
	IncomeCategoryID  string
	ExpenseCategoryID string
}

// ImportResult counts what an import did.
type ImportResult struct {
	Imported int
	Skipped  int
}

// Importer writes statement entries through the ledger service.
type Importer struct {
	ledger  *ledger.Service
	metrics metrics.Recorder
}

// NewImporter creates an importer. A nil recorder disables metrics.
func NewImporter(svc *ledger.Service, recorder metrics.Recorder) *Importer {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Importer{ledger: svc, metrics: recorder}
}

// EntryID returns the ledger ID an entry is imported under.
func EntryID(accountID string, e Entry) string {
	key := strings.Join([]string{accountID, e.StatementAccount, e.FITID}, "\x00")
	return uuid.NewSHA1(importNamespace, []byte(key)).String()
}

// Import adds each entry as an income (positive amount) or expense (negative
// amount) transaction on opts.AccountID. Entries already imported and
// zero-amount entries are skipped. progress, if set, is called after each
// entry. The first failing entry stops the import; earlier entries stay.
func (im *Importer) Import(ctx context.Context, entries []Entry, opts ImportOptions, progress func()) (ImportResult, error) {
	var result ImportResult
	defer func() { im.metrics.RecordImport(result.Imported, result.Skipped) }()

	for _, e := range entries {
		imported, err := im.importEntry(ctx, e, opts)
		if err != nil {
			return result, fmt.Errorf("entry %s: %w", e.FITID, err)
		}
		if imported {
			result.Imported++
		} else {
			result.Skipped++
		}
		if progress != nil {
			progress()
		}
	}

	slog.Info("Imported statement",
		"account", opts.AccountID,
		"imported", result.Imported,
		"skipped", result.Skipped)
	return result, nil
}

func (im *Importer) importEntry(ctx context.Context, e Entry, opts ImportOptions) (bool, error) {
	if e.Amount.IsZero() {
		slog.Debug("skipping zero-amount entry", "fitid", e.FITID)
		return false, nil
	}

	id := EntryID(opts.AccountID, e)
	if _, err := im.ledger.FindTransaction(ctx, id); err == nil {
		return false, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return false, err
	}

	txn := &model.Transaction{
		ID:            id,
		Date:          e.Date,
		Amount:        e.Amount.Abs(),
		FromAccountID: opts.AccountID,
		Notes:         notes(e),
	}
	if e.Amount.IsPositive() {
		txn.Type = model.TransactionTypeIncome
		txn.CategoryID = opts.IncomeCategoryID
	} else {
		txn.Type = model.TransactionTypeExpense
		txn.CategoryID = opts.ExpenseCategoryID
	}

	if _, err := im.ledger.AddTransaction(ctx, txn); err != nil {
		return false, err
	}
	return true, nil
}

func notes(e Entry) string {
	switch {
	case e.Memo == "" || strings.EqualFold(e.Memo, e.Payee):
		return e.Payee
	case e.Payee == "":
		return e.Memo
	default:
		return e.Payee + " (" + e.Memo + ")"
	}
}
