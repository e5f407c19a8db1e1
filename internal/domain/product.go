package domain

import "time"

// CategoryAll is the catalog filter value that disables category filtering.
const CategoryAll = "All"

type Product struct {
	ProductID   string    `json:"id" dynamodbav:"product_id"`
	UserID      string    `json:"user_id,omitempty" dynamodbav:"user_id,omitempty"`
	Title       string    `json:"title" dynamodbav:"title"`
	Description string    `json:"description" dynamodbav:"description"`
	Price       string    `json:"price" dynamodbav:"price"`
	Category    string    `json:"category" dynamodbav:"category"`
	ImageKey    *string   `json:"image_key,omitempty" dynamodbav:"image_key"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}

type CreateProductRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Price       string `json:"price" validate:"required,numeric"`
	Category    string `json:"category" validate:"required"`
}

type UpdateProductRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1"`
	Description *string `json:"description" validate:"omitempty,min=1"`
	Price       *string `json:"price" validate:"omitempty,numeric"`
	Category    *string `json:"category" validate:"omitempty,min=1"`
}

// Actor identifies the caller of a mutating operation. The zero value is an
// anonymous caller.
type Actor struct {
	UserID string
	Role   string
}

// CanModify reports whether the actor may change or delete p.
// Unowned products are open to every caller.
func (a Actor) CanModify(p *Product) bool {
	if p.UserID == "" {
		return true
	}
	return a.Role == RoleAdmin || (a.UserID != "" && a.UserID == p.UserID)
}

// Product attribute names used in partial update maps. They match the
// DynamoDB attribute names and the Postgres column names.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldCategory    = "category"
	FieldImageKey    = "image_key"
)
