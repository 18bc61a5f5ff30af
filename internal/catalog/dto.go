package catalog

// CreateProductRequest creates a product with its initial variants.
type CreateProductRequest struct {
	Code        string                 `json:"code" validate:"required,max=50"`
	Name        string                 `json:"name" validate:"required,max=200"`
	Description *string                `json:"description,omitempty"`
	Category    *string                `json:"category,omitempty" validate:"omitempty,max=100"`
	Variants    []CreateVariantRequest `json:"variants" validate:"required,min=1,dive"`
}

// CreateVariantRequest describes one variant.
type CreateVariantRequest struct {
	SKU       string  `json:"sku" validate:"required,max=64"`
	Size      *string `json:"size,omitempty" validate:"omitempty,max=32"`
	Color     *string `json:"color,omitempty" validate:"omitempty,max=32"`
	Quantity  int64   `json:"quantity" validate:"gte=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// UpdateProductRequest patches mutable product fields.
type UpdateProductRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty" validate:"omitempty,max=100"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ListRequest filters product listings.
type ListRequest struct {
	Search   *string
	Category *string
	IsActive *bool
	Limit    int
	Offset   int
}
