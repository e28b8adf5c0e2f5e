package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/aurelle-london/backend-aurelle/internal/catalog"
	"github.com/aurelle-london/backend-aurelle/internal/money"
)

const getProductByID = `
SELECT id, code, name, slug, packaging_price, materials, finishes, is_active
FROM products
WHERE id = $1 AND is_active
`

// GetProductByID loads an active product with its materials and finishes.
// Called once per pricing computation; never cached.
func (q *Queries) GetProductByID(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	row := q.db.QueryRow(ctx, getProductByID, id)
	var (
		p             catalog.Product
		packagingPnc  int64
		materialsJSON []byte
		finishesJSON  []byte
	)
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Slug, &packagingPnc, &materialsJSON, &finishesJSON, &p.IsActive)
	if err != nil {
		return catalog.Product{}, wrapNotFound(err)
	}
	p.PackagingPrice = money.FromPence(packagingPnc)
	if err := json.Unmarshal(materialsJSON, &p.Materials); err != nil {
		return catalog.Product{}, fmt.Errorf("decode materials: %w", err)
	}
	if len(finishesJSON) > 0 {
		if err := json.Unmarshal(finishesJSON, &p.Finishes); err != nil {
			return catalog.Product{}, fmt.Errorf("decode finishes: %w", err)
		}
	}
	return p, nil
}

const insertProduct = `
INSERT INTO products (id, code, name, slug, packaging_price, materials, finishes, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
ON CONFLICT (code) DO NOTHING
`

// InsertProduct seeds a catalog entry. Catalog CRUD proper lives in the
// back-office; this exists for the seeder tool.
func (q *Queries) InsertProduct(ctx context.Context, p catalog.Product) error {
	materialsJSON, err := json.Marshal(p.Materials)
	if err != nil {
		return fmt.Errorf("encode materials: %w", err)
	}
	finishesJSON, err := json.Marshal(p.Finishes)
	if err != nil {
		return fmt.Errorf("encode finishes: %w", err)
	}
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err = q.db.Exec(ctx, insertProduct, id, p.Code, p.Name, p.Slug, p.PackagingPrice.Pence(), materialsJSON, finishesJSON)
	return err
}
