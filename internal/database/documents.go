package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TemirB/freight-portal/internal/config"
	"github.com/TemirB/freight-portal/internal/domain"
)

type DocumentRepo struct {
	base
}

func NewDocumentRepo(db DB, t config.Tables) *DocumentRepo {
	return &DocumentRepo{base{db: db, tables: t}}
}

func (r *DocumentRepo) Save(ctx context.Context, d *domain.Document, content []byte) error {
	_, err := r.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, shipment_id, name, content_type, size, uploaded_by, uploaded_at, content)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, r.qt(r.tables.Documents)),
		d.ID, d.ShipmentID, d.Name, d.ContentType, d.Size, d.UploadedBy, d.UploadedAt, content,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("document %s: %w", d.ID, domain.ErrConflict)
	}
	return err
}

// List returns the shipment's documents, newest first, without their content.
func (r *DocumentRepo) List(ctx context.Context, shipmentID string) ([]domain.Document, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT id::text, shipment_id, name, content_type, size, uploaded_by, uploaded_at
		FROM %s WHERE shipment_id=$1
		ORDER BY uploaded_at DESC
	`, r.qt(r.tables.Documents)), shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.ShipmentID, &d.Name, &d.ContentType, &d.Size, &d.UploadedBy, &d.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) Get(ctx context.Context, shipmentID, id string) (*domain.Document, []byte, error) {
	var (
		d       domain.Document
		content []byte
	)
	err := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT id::text, shipment_id, name, content_type, size, uploaded_by, uploaded_at, content
		FROM %s WHERE shipment_id=$1 AND id::text=$2
	`, r.qt(r.tables.Documents)), shipmentID, id).Scan(
		&d.ID, &d.ShipmentID, &d.Name, &d.ContentType, &d.Size, &d.UploadedBy, &d.UploadedAt, &content,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &d, content, nil
}

// Delete removes a document and returns its metadata.
func (r *DocumentRepo) Delete(ctx context.Context, shipmentID, id string) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE shipment_id=$1 AND id::text=$2
		RETURNING id::text, shipment_id, name, content_type, size, uploaded_by, uploaded_at
	`, r.qt(r.tables.Documents)), shipmentID, id).Scan(
		&d.ID, &d.ShipmentID, &d.Name, &d.ContentType, &d.Size, &d.UploadedBy, &d.UploadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
