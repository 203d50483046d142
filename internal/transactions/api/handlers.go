// Package api exposes the transaction service over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"paywallet/internal/common/api"
	"paywallet/internal/common/middleware"
	"paywallet/internal/offers"
	"paywallet/internal/payment"
	"paywallet/internal/providers/analyticssvc"
	"paywallet/internal/providers/cardsvc"
	"paywallet/internal/providers/otpsvc"
	"paywallet/internal/transactions"
	"paywallet/internal/transactions/domain"
)

// PaymentProcessor drives offer-to-transaction processing.
type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, userID, offerID, cardNumber, cvv string) (payment.Result, error)
}

// Ledger is the slice of the transaction service the handlers use.
type Ledger interface {
	GetInfo(ctx context.Context, txnID string) (domain.Transaction, error)
	FinalizeByUserAndOffer(ctx context.Context, userID, offerID string) (domain.Transaction, error)
	Cancel(ctx context.Context, txnID, reason string) (domain.Transaction, error)
	Recent(ctx context.Context, cardNumber string, count int) ([]domain.Transaction, error)
	LastUsedCards(ctx context.Context, userID string, offset, limit int) ([]string, error)
	Report(ctx context.Context, cardNumber string, from, to time.Time, filter transactions.ReportFilter) (transactions.PeriodReport, error)
}

// ReportLinker builds expense report download links.
type ReportLinker interface {
	ExpenseReportLink(ctx context.Context, userID, cardNumber string, from, to time.Time) (string, error)
}

// CardDirectory resolves card records, used to verify ownership before
// serving a card's transaction history.
type CardDirectory interface {
	Lookup(ctx context.Context, cardNumber string) (cardsvc.CardInfo, error)
}

// Handlers holds the HTTP handlers for transactions.
type Handlers struct {
	processor PaymentProcessor
	ledger    Ledger
	cards     CardDirectory
	reports   ReportLinker
	logger    *slog.Logger
}

// NewHandlers creates transaction HTTP handlers
func NewHandlers(processor PaymentProcessor, ledger Ledger, cards CardDirectory, reports ReportLinker, logger *slog.Logger) *Handlers {
	return &Handlers{
		processor: processor,
		ledger:    ledger,
		cards:     cards,
		reports:   reports,
		logger:    logger,
	}
}

// ownsCard verifies the card belongs to the requesting user and writes
// the error response when it does not.
func (h *Handlers) ownsCard(w http.ResponseWriter, r *http.Request, cardNumber string) bool {
	card, err := h.cards.Lookup(r.Context(), cardNumber)
	if errors.Is(err, cardsvc.ErrCardNotFound) {
		api.NotFound(w, "card not found")
		return false
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return false
	}
	if card.OwnerID != middleware.GetUserID(r.Context()) {
		api.Forbidden(w, "card belongs to another user")
		return false
	}
	return true
}

// Routes mounts the transaction endpoints.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	// OTP service callback, authenticated upstream on the internal
	// network; carries its own user reference.
	r.Post("/confirm", h.confirmPayment)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)

		r.Get("/cards/last-used", h.lastUsedCards)
		r.Post("/period", h.periodReport(transactions.ReportAll))
		r.Post("/expense/period", h.periodReport(transactions.ReportExpenses))
		r.Post("/expense/period/analytics", h.expenseReportLink)
		r.Post("/income/period", h.periodReport(transactions.ReportIncome))

		r.Get("/{id}", h.getTransaction)
		r.Post("/{id}", h.initiatePayment)
		r.Post("/{id}/cancel", h.cancelTransaction)
		r.Get("/{id}/recent", h.recentTransactions)
	})

	return r
}

type initiateRequest struct {
	CardNumber string `json:"cardNumber" validate:"required,credit_card"`
	CVV        string `json:"cvv" validate:"required,len=3,numeric"`
}

func (h *Handlers) initiatePayment(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	var req initiateRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	result, err := h.processor.ProcessPayment(r.Context(), userID, offerID, req.CardNumber, req.CVV)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusCreated, result)
}

type confirmRequest struct {
	UserID  string `json:"userId" validate:"required"`
	OfferID string `json:"offerId" validate:"required"`
}

func (h *Handlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	txn, err := h.ledger.FinalizeByUserAndOffer(r.Context(), req.UserID, req.OfferID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, txn)
}

func (h *Handlers) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.ledger.GetInfo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if txn.UserID != middleware.GetUserID(r.Context()) {
		api.Forbidden(w, "transaction belongs to another user")
		return
	}
	api.WriteData(w, http.StatusOK, txn)
}

func (h *Handlers) cancelTransaction(w http.ResponseWriter, r *http.Request) {
	txnID := chi.URLParam(r, "id")

	txn, err := h.ledger.GetInfo(r.Context(), txnID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if txn.UserID != middleware.GetUserID(r.Context()) {
		api.Forbidden(w, "transaction belongs to another user")
		return
	}

	cancelled, err := h.ledger.Cancel(r.Context(), txnID, "cancelled by user")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, cancelled)
}

func (h *Handlers) recentTransactions(w http.ResponseWriter, r *http.Request) {
	cardNumber := chi.URLParam(r, "id")
	count := api.QueryInt(r, "count", 10)
	if count < 1 || count > 100 {
		api.BadRequest(w, "count must be between 1 and 100")
		return
	}
	if !h.ownsCard(w, r, cardNumber) {
		return
	}

	txns, err := h.ledger.Recent(r.Context(), cardNumber, count)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, txns)
}

func (h *Handlers) lastUsedCards(w http.ResponseWriter, r *http.Request) {
	offset := api.QueryInt(r, "offset", 0)
	limit := api.QueryInt(r, "limit", 10)
	if offset < 0 || limit < 1 || limit > 100 {
		api.BadRequest(w, "invalid pagination parameters")
		return
	}

	cards, err := h.ledger.LastUsedCards(r.Context(), middleware.GetUserID(r.Context()), offset, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, cards)
}

type periodRequest struct {
	CardNumber string `json:"cardNumber" validate:"required,credit_card"`
	From       string `json:"from" validate:"required,datetime=2006-01-02"`
	To         string `json:"to" validate:"required,datetime=2006-01-02"`
}

func (req periodRequest) dates() (from, to time.Time, err error) {
	from, err = time.Parse("2006-01-02", req.From)
	if err != nil {
		return
	}
	to, err = time.Parse("2006-01-02", req.To)
	return
}

func (h *Handlers) periodReport(filter transactions.ReportFilter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req periodRequest
		if err := api.DecodeAndValidate(r, &req); err != nil {
			api.ValidationError(w, err)
			return
		}
		from, to, err := req.dates()
		if err != nil {
			api.BadRequest(w, "invalid date")
			return
		}
		if !h.ownsCard(w, r, req.CardNumber) {
			return
		}

		report, err := h.ledger.Report(r.Context(), req.CardNumber, from, to, filter)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		api.WriteData(w, http.StatusOK, report)
	}
}

type reportLinkResponse struct {
	URL string `json:"url"`
}

func (h *Handlers) expenseReportLink(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	from, to, err := req.dates()
	if err != nil {
		api.BadRequest(w, "invalid date")
		return
	}
	if !h.ownsCard(w, r, req.CardNumber) {
		return
	}

	link, err := h.reports.ExpenseReportLink(r.Context(), middleware.GetUserID(r.Context()), req.CardNumber, from, to)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, reportLinkResponse{URL: link})
}

func (h *Handlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, offers.ErrOfferNotFound):
		api.NotFound(w, "payment offer not found or expired")
	case errors.Is(err, transactions.ErrTransactionNotFound):
		api.NotFound(w, "transaction not found")
	case errors.Is(err, payment.ErrCardNotFound):
		api.NotFound(w, "card not found")
	case errors.Is(err, payment.ErrAccessDenied):
		api.Forbidden(w, err.Error())
	case errors.Is(err, payment.ErrInvalidCVV),
		errors.Is(err, payment.ErrCardBlocked),
		errors.Is(err, payment.ErrCardFrozen),
		errors.Is(err, payment.ErrCardExpired):
		api.UnprocessableEntity(w, api.ErrCodeValidation, err.Error())
	case errors.Is(err, payment.ErrInsufficientBalance):
		api.UnprocessableEntity(w, api.ErrCodeInsufficientFunds, err.Error())
	case errors.Is(err, transactions.ErrPaymentDeclined):
		api.UnprocessableEntity(w, api.ErrCodeValidation, "payment declined by the card issuer")
	case errors.Is(err, transactions.ErrIncorrectTimePeriod):
		api.UnprocessableEntity(w, api.ErrCodeIncorrectPeriod, err.Error())
	case errors.Is(err, offers.ErrUnavailable),
		errors.Is(err, cardsvc.ErrUnavailable),
		errors.Is(err, otpsvc.ErrUnavailable),
		errors.Is(err, analyticssvc.ErrUnavailable):
		api.ServiceUnavailable(w, "a dependency is unavailable, try again")
	default:
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"correlation_id", middleware.GetCorrelationID(r.Context()),
			"error", err,
		)
		api.InternalError(w, "An unexpected error occurred")
	}
}
