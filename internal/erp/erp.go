// Package erp reads quotes and shipments from the logistics ERP.
package erp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/listing"
	"github.com/TemirB/freight-portal/internal/upstream"
)

const (
	ResourceQuotes         = "quotes"
	ResourceAirShipments   = "airShipments"
	ResourceOceanShipments = "oceanShipments"
)

//go:generate mockgen -source erp.go -destination=erp_mock_test.go -package=erp

type Doer interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) (upstream.Response, error)
}

type Client struct {
	http Doer
}

func New(http Doer) *Client {
	return &Client{http: http}
}

// Quotes returns one page of the consignee's quotes, newest first.
// Total is -1 when the ERP did not send x-total-count.
func (c *Client) Quotes(ctx context.Context, consignee string, page, size int) (listing.Page[domain.Quote], error) {
	return list[domain.Quote](ctx, c.http, "/Quotes", consignee, page, size)
}

func (c *Client) AirShipments(ctx context.Context, consignee string, page, size int) (listing.Page[domain.Shipment], error) {
	p, err := list[domain.Shipment](ctx, c.http, "/AirShipments", consignee, page, size)
	setMode(p.Items, domain.ModeAir)
	return p, err
}

func (c *Client) OceanShipments(ctx context.Context, consignee string, page, size int) (listing.Page[domain.Shipment], error) {
	p, err := list[domain.Shipment](ctx, c.http, "/OceanShipments", consignee, page, size)
	setMode(p.Items, domain.ModeOcean)
	return p, err
}

func list[T domain.ListItem](ctx context.Context, http Doer, path, consignee string, page, size int) (listing.Page[T], error) {
	q := url.Values{}
	q.Set("ConsigneeName", consignee)
	q.Set("Page", strconv.Itoa(page))
	q.Set("ItemsPerPage", strconv.Itoa(size))
	q.Set("SortBy", "newest")

	var items []T
	resp, err := http.GetJSON(ctx, path, q, &items)
	if err != nil {
		return listing.Page[T]{Total: -1}, fmt.Errorf("erp %s page %d: %w", path, page, err)
	}
	return listing.Page[T]{Items: items, Total: resp.TotalCount}, nil
}

func setMode(items []domain.Shipment, m domain.Mode) {
	for i := range items {
		if items[i].Mode == "" {
			items[i].Mode = m
		}
	}
}

// fetcher adapts one ERP collection to listing.Fetcher.
type fetcher[T domain.ListItem] struct {
	resource string
	fetch    func(ctx context.Context, consignee string, page, size int) (listing.Page[T], error)
}

func (f fetcher[T]) Resource() string { return f.resource }

func (f fetcher[T]) Fetch(ctx context.Context, user string, page, size int) (listing.Page[T], error) {
	return f.fetch(ctx, user, page, size)
}

func (c *Client) QuoteFetcher() listing.Fetcher[domain.Quote] {
	return fetcher[domain.Quote]{resource: ResourceQuotes, fetch: c.Quotes}
}

func (c *Client) AirShipmentFetcher() listing.Fetcher[domain.Shipment] {
	return fetcher[domain.Shipment]{resource: ResourceAirShipments, fetch: c.AirShipments}
}

func (c *Client) OceanShipmentFetcher() listing.Fetcher[domain.Shipment] {
	return fetcher[domain.Shipment]{resource: ResourceOceanShipments, fetch: c.OceanShipments}
}
