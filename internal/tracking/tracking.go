// Package tracking talks to the container and AWB tracking service.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/events"
	"github.com/TemirB/freight-portal/internal/listing"
	"github.com/TemirB/freight-portal/internal/upstream"
)

const (
	Resource = "trackedShipments"

	shipmentsPath = "/api/shipsgo/shipments"

	MsgNoCredits      = "insufficient credits to track a new shipment"
	MsgAlreadyTracked = "shipment is already being tracked"
)

//go:generate mockgen -source tracking.go -destination=tracking_mock_test.go -package=tracking

type Doer interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) (upstream.Response, error)
	PostJSON(ctx context.Context, path string, body, out any) (upstream.Response, error)
}

type CreateRequest struct {
	AwbNumber       string   `json:"awb_number,omitempty"`
	ContainerNumber string   `json:"container_number,omitempty"`
	Reference       string   `json:"reference"`
	Tags            []string `json:"tags,omitempty"`
	Followers       []string `json:"followers,omitempty"`
}

type listResponse struct {
	Message   string                   `json:"message"`
	Shipments []domain.TrackedShipment `json:"shipments"`
	Meta      struct {
		More  bool `json:"more"`
		Total int  `json:"total"`
	} `json:"meta"`
}

type createResponse struct {
	Message  string                 `json:"message"`
	Shipment domain.TrackedShipment `json:"shipment"`
}

type Client struct {
	http   Doer
	events events.Publisher
	logger *zap.Logger
}

func New(http Doer, pub events.Publisher, logger *zap.Logger) *Client {
	return &Client{http: http, events: pub, logger: logger}
}

func (c *Client) Resource() string { return Resource }

// Fetch returns one page of tracked shipments whose reference is user.
// The service pages over every account, so a page may hold fewer than size
// matches while more pages still exist; meta.more decides.
func (c *Client) Fetch(ctx context.Context, user string, page, size int) (listing.Page[domain.TrackedShipment], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(size))

	var resp listResponse
	if _, err := c.http.GetJSON(ctx, shipmentsPath, q, &resp); err != nil {
		return listing.Page[domain.TrackedShipment]{}, fmt.Errorf("tracking page %d: %w", page, err)
	}

	items := make([]domain.TrackedShipment, 0, len(resp.Shipments))
	for _, s := range resp.Shipments {
		if s.Reference == user {
			items = append(items, s)
		}
	}
	more := resp.Meta.More
	return listing.Page[domain.TrackedShipment]{Items: items, More: &more}, nil
}

// Create registers a shipment with the tracking service on behalf of user.
// The request is validated first; nothing is sent when it is invalid.
func (c *Client) Create(ctx context.Context, user string, req CreateRequest) (*domain.TrackedShipment, error) {
	if strings.TrimSpace(req.Reference) == "" {
		req.Reference = user
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var resp createResponse
	if _, err := c.http.PostJSON(ctx, shipmentsPath, req, &resp); err != nil {
		return nil, businessError(err)
	}

	c.logger.Info("shipment tracked",
		zap.String("username", user),
		zap.String("reference", req.Reference),
		zap.Int64("id", resp.Shipment.ID),
	)
	// The new shipment shows up in the reference owner's list.
	if err := c.events.Publish(ctx, events.NewInvalidation(req.Reference, Resource)); err != nil {
		c.logger.Warn("tracked shipments cache not invalidated", zap.String("username", req.Reference), zap.Error(err))
	}
	return &resp.Shipment, nil
}

// businessError replaces the service's own wording for the outcomes users
// can act on.
func businessError(err error) error {
	var ue *upstream.Error
	if !errors.As(err, &ue) || ue.Kind != upstream.KindBusiness {
		return fmt.Errorf("create tracked shipment: %w", err)
	}
	out := *ue
	switch ue.Status {
	case http.StatusPaymentRequired:
		out.Message = MsgNoCredits
	case http.StatusConflict:
		out.Message = MsgAlreadyTracked
	}
	return fmt.Errorf("create tracked shipment: %w", &out)
}
