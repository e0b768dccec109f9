package patterns

import (
	"fmt"

	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/asaidimu/go-bookstore/utils"
)

// AsProduct decodes a normalized product document into its typed view. Documents
// still in a legacy shape fail because their authors are not a sequence.
func AsProduct(doc schema.Document) (schema.Product, error) {
	if kind := doc.FieldKind(schema.FieldAuthors); kind == schema.KindScalar {
		return schema.Product{}, fmt.Errorf("product %v is not normalized: %s is a %s", doc[schema.IDField], schema.FieldAuthors, kind)
	}
	p, err := utils.MapToStruct[schema.Product](doc)
	if err != nil {
		return schema.Product{}, fmt.Errorf("failed to decode product %v: %w", doc[schema.IDField], err)
	}
	return p, nil
}

// AsReview decodes a review carrying an embedded product reference into its typed view.
func AsReview(doc schema.Document) (schema.Review, error) {
	if !doc.Has(embedProduct + "." + schema.FieldProductID) {
		return schema.Review{}, fmt.Errorf("review %v has no embedded product reference", doc[schema.IDField])
	}
	r, err := utils.MapToStruct[schema.Review](doc)
	if err != nil {
		return schema.Review{}, fmt.Errorf("failed to decode review %v: %w", doc[schema.IDField], err)
	}
	return r, nil
}

// ToDocument converts a typed view back into a document.
func ToDocument[T any](record T) (schema.Document, error) {
	m, err := utils.StructToMap(record)
	if err != nil {
		return nil, err
	}
	return schema.Document(m), nil
}
