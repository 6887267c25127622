package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"solconta/internal/logger"
	"solconta/internal/models"
	"solconta/internal/pagination"
)

// ListTransactions returns every transaction of the signed-in user, newest
// first, with the joined category when it still exists. Rows that fail the
// shape check are dropped and logged.
func (c *Client) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	all := make([]models.Transaction, 0)
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("page_size", strconv.Itoa(pagination.MaxPageSize))

		var resp pagination.PageResponse[models.Transaction]
		if err := c.call(ctx, http.MethodGet, "/transactions", query, nil, &resp); err != nil {
			return nil, err
		}
		for i := range resp.Data {
			if err := resp.Data[i].CheckShape(); err != nil {
				logger.Get().Warnw("dropping malformed transaction", "error", err)
				continue
			}
			all = append(all, resp.Data[i])
		}
		if !resp.HasNext() {
			return all, nil
		}
	}
}

// CreateTransaction inserts a transaction owned by the signed-in user.
func (c *Client) CreateTransaction(ctx context.Context, in models.TransactionInput) (*models.Transaction, error) {
	var resp struct {
		Transaction models.Transaction `json:"transaction"`
	}
	if err := c.call(ctx, http.MethodPost, "/transactions", nil, in, &resp); err != nil {
		return nil, err
	}
	return &resp.Transaction, nil
}

// UpdateTransaction replaces every editable field of transaction id.
func (c *Client) UpdateTransaction(ctx context.Context, id string, in models.TransactionInput) (*models.Transaction, error) {
	var resp struct {
		Transaction models.Transaction `json:"transaction"`
	}
	if err := c.call(ctx, http.MethodPut, "/transactions/"+url.PathEscape(id), nil, in, &resp); err != nil {
		return nil, err
	}
	return &resp.Transaction, nil
}

// DeleteTransaction removes transaction id.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/transactions/"+url.PathEscape(id), nil, nil, nil)
}

// ListCategories returns the signed-in user's categories ordered by name.
func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var resp struct {
		Categories []models.Category `json:"categories"`
	}
	if err := c.call(ctx, http.MethodGet, "/categories", nil, nil, &resp); err != nil {
		return nil, err
	}

	categories := make([]models.Category, 0, len(resp.Categories))
	for i := range resp.Categories {
		if err := resp.Categories[i].CheckShape(); err != nil {
			logger.Get().Warnw("dropping malformed category", "error", err)
			continue
		}
		categories = append(categories, resp.Categories[i])
	}
	return categories, nil
}

// CreateCategory creates a category owned by the signed-in user.
func (c *Client) CreateCategory(ctx context.Context, in models.CategoryInput) (*models.Category, error) {
	var resp struct {
		Category models.Category `json:"category"`
	}
	if err := c.call(ctx, http.MethodPost, "/categories", nil, in, &resp); err != nil {
		return nil, err
	}
	return &resp.Category, nil
}

// DeleteCategory removes category id. Its transactions become uncategorized.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/categories/"+url.PathEscape(id), nil, nil, nil)
}
