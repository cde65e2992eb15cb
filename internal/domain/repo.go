package domain

import (
	"context"
)

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, role Role) ([]User, error)
	Delete(ctx context.Context, username string) error
}

type DocumentRepository interface {
	Save(ctx context.Context, doc *Document, content []byte) error
	List(ctx context.Context, shipmentID string) ([]Document, error)
	Get(ctx context.Context, shipmentID, id string) (*Document, []byte, error)
	Delete(ctx context.Context, shipmentID, id string) (*Document, error)
}
