package invoices

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindWithCredits loads an invoice and its credit notes.
func (r *Repository) FindWithCredits(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("CreditNotes").
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

type invoiceStore interface {
	FindWithCredits(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

// InvoiceBalance is the balance of one invoice with its identifying fields.
type InvoiceBalance struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Number    string    `json:"number"`
	Supplier  string    `json:"supplier"`
	Balance
}

type Service struct {
	repo invoiceStore
}

func NewService(repo invoiceStore) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invoice repository required")
	}
	return &Service{repo: repo}, nil
}

func (s *Service) Balance(ctx context.Context, invoiceID uuid.UUID) (*InvoiceBalance, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	invoice, err := s.repo.FindWithCredits(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}

	credits := make([]decimal.Decimal, len(invoice.CreditNotes))
	for i, note := range invoice.CreditNotes {
		credits[i] = note.Amount
	}
	return &InvoiceBalance{
		InvoiceID: invoice.ID,
		Number:    invoice.Number,
		Supplier:  invoice.Supplier,
		Balance:   Net(invoice.Amount, credits),
	}, nil
}
