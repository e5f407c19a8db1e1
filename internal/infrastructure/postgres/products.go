package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bucket-api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

// Price is stored as NUMERIC and travels as text in both directions.
const productColumns = `id, COALESCE(user_id, ''), title, description, price::text, category, image_key, created_at, updated_at`

// productSetters maps updatable fields to their SET expression template.
var productSetters = map[string]string{
	domain.FieldTitle:       "title = $%d",
	domain.FieldDescription: "description = $%d",
	domain.FieldPrice:       "price = $%d::text::numeric",
	domain.FieldCategory:    "category = $%d",
	domain.FieldImageKey:    "image_key = $%d",
}

func (r *ProductRepo) Put(ctx context.Context, p *domain.Product) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (id, user_id, title, description, price, category, image_key, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5::text::numeric, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, description = EXCLUDED.description, price = EXCLUDED.price,
		    category = EXCLUDED.category, image_key = EXCLUDED.image_key, updated_at = EXCLUDED.updated_at
	`, p.ProductID, p.UserID, p.Title, p.Description, p.Price, p.Category, p.ImageKey, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *ProductRepo) Get(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product not found: %w", domain.ErrNotFound)
	}
	return p, err
}

func (r *ProductRepo) List(ctx context.Context, category string) ([]domain.Product, error) {
	if category == "" {
		return r.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	}
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE category = $1 ORDER BY id`, category)
}

func (r *ProductRepo) ListByOwner(ctx context.Context, userID string) ([]domain.Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE user_id = $1 ORDER BY id`, userID)
}

func (r *ProductRepo) Update(ctx context.Context, productID string, updates map[string]interface{}) error {
	set, args, err := buildProductUpdate(updates, time.Now().UTC())
	if err != nil {
		return err
	}
	args = append(args, productID)
	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d`, set, len(args))
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, productID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, productID)
	return err
}

func (r *ProductRepo) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ProductID,
		&p.UserID,
		&p.Title,
		&p.Description,
		&p.Price,
		&p.Category,
		&p.ImageKey,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// buildProductUpdate turns a field map into a SET clause with positional
// arguments. Fields are sorted; updated_at is always appended last.
func buildProductUpdate(updates map[string]interface{}, now time.Time) (string, []any, error) {
	if len(updates) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		tmpl, ok := productSetters[k]
		if !ok {
			return "", nil, fmt.Errorf("unknown product field %q: %w", k, domain.ErrBadRequest)
		}
		args = append(args, updates[k])
		parts = append(parts, fmt.Sprintf(tmpl, len(args)))
	}
	args = append(args, now)
	parts = append(parts, fmt.Sprintf("updated_at = $%d", len(args)))
	return strings.Join(parts, ", "), args, nil
}
