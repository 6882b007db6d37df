package nextcrm

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Business endpoints.
const (
	PathContracts          = "/api/nextcrm/contracts/"
	PathContractAmendments = "/api/nextcrm/contract-amendments/"
	PathDashboardStats     = "/api/nextcrm/contracts/dashboard_stats/"
	PathCounterparties     = "/api/nextcrm/counterparties/"
	PathCommodities        = "/api/nextcrm/commodities/"
	PathTraders            = "/api/nextcrm/traders/"
	PathCurrencies         = "/api/nextcrm/currencies/"
	PathCostCenters        = "/api/nextcrm/cost-centers/"
	PathSociedades         = "/api/nextcrm/sociedades/"
	PathCommodityGroups    = "/api/nextcrm/commodity-groups/"
	PathCommodityTypes     = "/api/nextcrm/commodity-types/"
	PathExchangeRates      = "/api/nextcrm/exchange-rates/"
	PathSearch             = "/api/nextcrm/search/"
)

func itemPath(collection, id string, action ...string) string {
	p := collection + url.PathEscape(id) + "/"
	for _, a := range action {
		p += a + "/"
	}
	return p
}

func (c *Client) ListContracts(ctx context.Context, filters ContractFilters) (*Page[Contract], error) {
	var out Page[Contract]
	if err := c.call(ctx, http.MethodGet, PathContracts, filters.Values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetContract(ctx context.Context, id string) (*Contract, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingID
	}
	var out Contract
	if err := c.call(ctx, http.MethodGet, itemPath(PathContracts, id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateContract(ctx context.Context, in ContractInput) (*Contract, error) {
	var out Contract
	if err := c.call(ctx, http.MethodPost, PathContracts, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateContract(ctx context.Context, id string, in ContractInput) (*Contract, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingID
	}
	var out Contract
	if err := c.call(ctx, http.MethodPut, itemPath(PathContracts, id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteContract(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	return c.call(ctx, http.MethodDelete, itemPath(PathContracts, id), nil, nil, nil)
}

// ApproveContract moves a pending contract to approved.
func (c *Client) ApproveContract(ctx context.Context, id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", ErrMissingID
	}
	var out MessageResponse
	if err := c.call(ctx, http.MethodPost, itemPath(PathContracts, id, "approve"), nil, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// CancelContract cancels a contract. reason may be empty.
func (c *Client) CancelContract(ctx context.Context, id, reason string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", ErrMissingID
	}
	body := struct {
		Reason string `json:"reason"`
	}{Reason: reason}
	var out MessageResponse
	if err := c.call(ctx, http.MethodPost, itemPath(PathContracts, id, "cancel"), nil, body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ListContractAmendments lists amendments. Pass Extra{"contract": {id}} to
// narrow to one contract.
func (c *Client) ListContractAmendments(ctx context.Context, params ListParams) (*Page[ContractAmendment], error) {
	var out Page[ContractAmendment]
	if err := c.call(ctx, http.MethodGet, PathContractAmendments, params.Values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
