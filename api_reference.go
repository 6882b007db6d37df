package nextcrm

import (
	"context"
	"net/http"
	"strconv"
)

func list[T any](ctx context.Context, c *Client, path string, params ListParams) (*Page[T], error) {
	var out Page[T]
	if err := c.call(ctx, http.MethodGet, path, params.Values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func get[T any](ctx context.Context, c *Client, collection string, id int64) (*T, error) {
	if id <= 0 {
		return nil, ErrMissingID
	}
	var out T
	if err := c.call(ctx, http.MethodGet, itemPath(collection, strconv.FormatInt(id, 10)), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCounterparties(ctx context.Context, params ListParams) (*Page[Counterparty], error) {
	return list[Counterparty](ctx, c, PathCounterparties, params)
}

func (c *Client) GetCounterparty(ctx context.Context, id int64) (*Counterparty, error) {
	return get[Counterparty](ctx, c, PathCounterparties, id)
}

func (c *Client) CreateCounterparty(ctx context.Context, in CounterpartyInput) (*Counterparty, error) {
	var out Counterparty
	if err := c.call(ctx, http.MethodPost, PathCounterparties, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCounterparty(ctx context.Context, id int64, in CounterpartyInput) (*Counterparty, error) {
	if id <= 0 {
		return nil, ErrMissingID
	}
	var out Counterparty
	if err := c.call(ctx, http.MethodPut, itemPath(PathCounterparties, strconv.FormatInt(id, 10)), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCommodities(ctx context.Context, params ListParams) (*Page[Commodity], error) {
	return list[Commodity](ctx, c, PathCommodities, params)
}

func (c *Client) GetCommodity(ctx context.Context, id int64) (*Commodity, error) {
	return get[Commodity](ctx, c, PathCommodities, id)
}

func (c *Client) ListTraders(ctx context.Context, params ListParams) (*Page[Trader], error) {
	return list[Trader](ctx, c, PathTraders, params)
}

func (c *Client) GetTrader(ctx context.Context, id int64) (*Trader, error) {
	return get[Trader](ctx, c, PathTraders, id)
}

func (c *Client) ListCurrencies(ctx context.Context, params ListParams) (*Page[Currency], error) {
	return list[Currency](ctx, c, PathCurrencies, params)
}

func (c *Client) ListCostCenters(ctx context.Context, params ListParams) (*Page[CostCenter], error) {
	return list[CostCenter](ctx, c, PathCostCenters, params)
}

func (c *Client) ListSociedades(ctx context.Context, params ListParams) (*Page[Sociedad], error) {
	return list[Sociedad](ctx, c, PathSociedades, params)
}

func (c *Client) ListCommodityGroups(ctx context.Context, params ListParams) (*Page[CommodityGroup], error) {
	return list[CommodityGroup](ctx, c, PathCommodityGroups, params)
}

func (c *Client) ListCommodityTypes(ctx context.Context, params ListParams) (*Page[CommodityType], error) {
	return list[CommodityType](ctx, c, PathCommodityTypes, params)
}

func (c *Client) ListExchangeRates(ctx context.Context, params ListParams) (*Page[ExchangeRate], error) {
	return list[ExchangeRate](ctx, c, PathExchangeRates, params)
}
