package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"solconta/internal/calendar"
	apperrors "solconta/internal/errors"
	"solconta/internal/models"
	"solconta/internal/pagination"
	"solconta/internal/services"
)

// TransactionHandler handles transaction-related requests
type TransactionHandler struct {
	transactionService services.TransactionServicer
	auditService       services.AuditServicer
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(transactionService services.TransactionServicer, auditService services.AuditServicer) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		auditService:       auditService,
	}
}

// ListTransactionsQuery holds the history filters and page of a listing.
type ListTransactionsQuery struct {
	Type       string `form:"type" binding:"omitempty,transaction_type"`
	Search     string `form:"q" binding:"max=200"`
	From       string `form:"from" binding:"omitempty,calendar_date"`
	To         string `form:"to" binding:"omitempty,calendar_date"`
	CategoryID string `form:"category_id" binding:"omitempty,uuid"`
	pagination.PageRequest
}

// filter converts the query into a service filter. Dates were already
// checked by the binding.
func (q ListTransactionsQuery) filter() services.TransactionFilter {
	var f services.TransactionFilter
	if q.Type != "" {
		t := models.TransactionType(q.Type)
		f.Type = &t
	}
	f.Search = q.Search
	if d, err := calendar.Parse(q.From); err == nil {
		f.From = &d
	}
	if d, err := calendar.Parse(q.To); err == nil {
		f.To = &d
	}
	if q.CategoryID != "" {
		id := q.CategoryID
		f.CategoryID = &id
	}
	return f
}

// ListTransactions returns a page of the user's transactions, newest first
// @Summary     List transactions
// @Description Transactions ordered by date and creation time, newest first, with their category
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       type query string false "income or expense"
// @Param       q query string false "Case-insensitive description search"
// @Param       from query string false "First day, YYYY-MM-DD"
// @Param       to query string false "Last day, YYYY-MM-DD"
// @Param       category_id query string false "Category ID"
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[models.Transaction]
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query ListTransactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.transactionService.PageTransactions(userID, query.filter(), query.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetTransaction returns a single transaction
// @Summary     Get transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransaction(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// CreateTransaction records a new income or expense
// @Summary     Create transaction
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body models.TransactionInput true "Transaction"
// @Success     201 {object} models.Transaction
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var input models.TransactionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transaction, err := h.transactionService.CreateTransaction(userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditCreate, models.ResourceTransaction, transaction.ID, c.ClientIP(), map[string]any{
		"type":   transaction.Type,
		"amount": transaction.Amount.StringFixed(2),
	})
	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// UpdateTransaction replaces a transaction
// @Summary     Update transaction
// @Description Full replacement of every editable field
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Param       request body models.TransactionInput true "Transaction"
// @Success     200 {object} models.Transaction
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var input models.TransactionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transaction, err := h.transactionService.UpdateTransaction(userID, transactionID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditUpdate, models.ResourceTransaction, transaction.ID, c.ClientIP(), map[string]any{
		"type":   transaction.Type,
		"amount": transaction.Amount.StringFixed(2),
	})
	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction removes a transaction
// @Summary     Delete transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} MessageResponse
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(userID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditDelete, models.ResourceTransaction, transactionID, c.ClientIP(), nil)
	c.JSON(http.StatusOK, MessageResponse{Message: "Transaction deleted successfully"})
}
