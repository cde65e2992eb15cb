// Package documents stores the files attached to ocean shipments. Content
// travels as base64 inside JSON and is kept in the document repository.
package documents

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/config"
	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/erp"
	"github.com/TemirB/freight-portal/internal/events"
)

//go:generate mockgen -source=../domain/repo.go -destination=repo_mock_test.go -package=documents

const DefaultMaxBytes = 5 << 20

type Upload struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	// Content is standard base64, optionally as a data URL.
	Content string `json:"content"`
	// Owner is the customer whose shipment this is, when staff upload on
	// their behalf. Empty means the uploader.
	Owner string `json:"owner,omitempty"`
}

// File is a document together with its base64 content.
type File struct {
	Document domain.Document `json:"document"`
	Content  string          `json:"content"`
}

type Service struct {
	repo     domain.DocumentRepository
	events   events.Publisher
	maxBytes int
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(repo domain.DocumentRepository, pub events.Publisher, cfg config.Documents, logger *zap.Logger) *Service {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Service{
		repo:     repo,
		events:   pub,
		maxBytes: cfg.MaxBytes,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *Service) List(ctx context.Context, shipmentID string) ([]domain.Document, error) {
	shipmentID, err := cleanShipmentID(shipmentID)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, shipmentID)
}

func (s *Service) Get(ctx context.Context, shipmentID, id string) (*File, error) {
	shipmentID, err := cleanShipmentID(shipmentID)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	doc, content, err := s.repo.Get(ctx, shipmentID, id)
	if err != nil {
		return nil, err
	}
	return &File{Document: *doc, Content: base64.StdEncoding.EncodeToString(content)}, nil
}

// Upload decodes and stores a document. Content larger than the configured
// limit is rejected before anything is written.
func (s *Service) Upload(ctx context.Context, user, shipmentID string, up Upload) (*domain.Document, error) {
	shipmentID, err := cleanShipmentID(shipmentID)
	if err != nil {
		return nil, err
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(up.Name), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("%w: document name is required", domain.ErrInvalid)
	}

	content, err := s.decode(up.Content)
	if err != nil {
		return nil, err
	}
	contentType := strings.TrimSpace(up.ContentType)
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	doc := &domain.Document{
		ID:          uuid.NewString(),
		ShipmentID:  shipmentID,
		Name:        name,
		ContentType: contentType,
		Size:        len(content),
		UploadedBy:  user,
		UploadedAt:  s.now().UTC(),
	}
	if err := s.repo.Save(ctx, doc, content); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	s.logger.Info("document uploaded",
		zap.String("id", doc.ID),
		zap.String("shipment", shipmentID),
		zap.String("username", user),
		zap.Int("size", doc.Size),
	)
	s.invalidate(ctx, user, strings.TrimSpace(up.Owner))
	return doc, nil
}

func (s *Service) Delete(ctx context.Context, user, shipmentID, id string) error {
	shipmentID, err := cleanShipmentID(shipmentID)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	doc, err := s.repo.Delete(ctx, shipmentID, id)
	if err != nil {
		return err
	}
	s.logger.Info("document deleted",
		zap.String("id", doc.ID),
		zap.String("shipment", shipmentID),
		zap.String("username", user),
	)
	s.invalidate(ctx, user, doc.UploadedBy)
	return nil
}

// invalidate drops the ocean shipments list of every given user; those lists
// show document counts.
func (s *Service) invalidate(ctx context.Context, users ...string) {
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		if err := s.events.Publish(ctx, events.NewInvalidation(u, erp.ResourceOceanShipments)); err != nil {
			s.logger.Warn("ocean shipments cache not invalidated", zap.String("username", u), zap.Error(err))
		}
	}
}

func (s *Service) decode(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		i := strings.Index(raw, ",")
		if i < 0 || !strings.HasSuffix(raw[:i], ";base64") {
			return nil, fmt.Errorf("%w: content must be base64", domain.ErrInvalid)
		}
		raw = raw[i+1:]
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: document is empty", domain.ErrInvalid)
	}
	if base64.StdEncoding.DecodedLen(len(raw)) > s.maxBytes+2 {
		return nil, s.tooLarge()
	}
	content, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: content must be base64", domain.ErrInvalid)
	}
	if len(content) > s.maxBytes {
		return nil, s.tooLarge()
	}
	return content, nil
}

func (s *Service) tooLarge() error {
	return fmt.Errorf("%w: document exceeds %d MB", domain.ErrInvalid, s.maxBytes>>20)
}

func cleanShipmentID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/\\") {
		return "", fmt.Errorf("%w: shipment id is required", domain.ErrInvalid)
	}
	return id, nil
}
