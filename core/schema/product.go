package schema

import "fmt"

// ProductType is the unified subtype discriminator of a catalog product.
type ProductType string

const (
	ProductTypeBook      ProductType = "book"
	ProductTypeEbook     ProductType = "ebook"
	ProductTypeAudiobook ProductType = "audiobook"
)

// Field names of the unified product shape and of the legacy shapes it replaces.
const (
	FieldProductType = "product_type"
	FieldDescription = "description"
	FieldAuthors     = "authors"
	FieldProductID   = "product_id"
	FieldTitle       = "title"

	LegacyFieldDetails = "details"
	LegacyFieldDesc    = "desc"
	LegacyFieldAuthor  = "author"
)

// ProductTypes lists every known subtype.
func ProductTypes() []ProductType {
	return []ProductType{ProductTypeBook, ProductTypeEbook, ProductTypeAudiobook}
}

// ParseProductType validates a subtype name.
func ParseProductType(s string) (ProductType, error) {
	for _, t := range ProductTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown product type %q", s)
}

// Valid reports whether t is one of the known subtypes.
func (t ProductType) Valid() bool {
	_, err := ParseProductType(string(t))
	return err == nil
}

// Product is the typed view of a migrated product document.
type Product struct {
	ID          any         `json:"_id"`
	ProductID   any         `json:"product_id,omitempty"`
	ProductType ProductType `json:"product_type"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Authors     []string    `json:"authors,omitempty"`
}

// ProductSnapshot is the subset of product fields embedded into a review.
type ProductSnapshot struct {
	ProductID   any         `json:"product_id"`
	ProductType ProductType `json:"product_type,omitempty"`
	Title       string      `json:"title,omitempty"`
}

// ReviewBody holds the review's own fields once nested under "review".
type ReviewBody struct {
	UserID      any    `json:"user_id"`
	ReviewTitle string `json:"reviewTitle,omitempty"`
	ReviewBody  string `json:"reviewBody,omitempty"`
	Date        any    `json:"date,omitempty"`
	Stars       any    `json:"stars,omitempty"`
}

// Review is the typed view of a review carrying an extended product reference.
type Review struct {
	ID      any             `json:"_id"`
	Product ProductSnapshot `json:"product"`
	Review  ReviewBody      `json:"review"`
}
