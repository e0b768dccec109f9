package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/asaidimu/go-bookstore/patterns"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Reset the catalog to the sample legacy documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.catalog.Seed(cmd.Context()); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]int{
				"products": len(patterns.SampleProducts()),
				"reviews":  len(patterns.SampleReviews()),
			}, func(w io.Writer) {
				fmt.Fprintf(w, "seeded %d products and %d reviews\n", len(patterns.SampleProducts()), len(patterns.SampleReviews()))
			})
		},
	}
}

func newNormalizeCmd(a *app) *cobra.Command {
	var id, productType string
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Converge products onto the unified product schema",
		Long: `normalize assigns product_type, renames the legacy description field and turns
authors into a sequence. Without --id it normalizes the three sample products.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := patterns.ReferenceTargets()
			if id != "" || productType != "" {
				if id == "" || productType == "" {
					return fmt.Errorf("--id and --type must be given together")
				}
				targets = []patterns.Target{{ID: parseID(id), Type: schema.ProductType(productType)}}
			}

			results, err := a.catalog.Run(cmd.Context(), targets)
			if printErr := a.print(cmd.OutOrStdout(), results, func(w io.Writer) {
				for _, r := range results {
					fmt.Fprintf(w, "%v\t%s\tmatched=%d\tmodifiedSteps=%d\n", r.ID, r.Type, r.MatchedCount, r.ModifiedCount)
				}
			}); printErr != nil {
				return printErr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "identifier of the product to normalize")
	cmd.Flags().StringVar(&productType, "type", "", "product type to assign: book, ebook or audiobook")
	return cmd
}

func newEmbedReviewsCmd(a *app) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "embed-reviews",
		Short: "Embed a product snapshot into reviews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				result any
				err    error
			)
			if id != "" {
				result, err = a.catalog.EmbedProduct(cmd.Context(), parseID(id))
			} else {
				result, err = a.catalog.EmbedAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "%+v\n", result)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "identifier of a single review (default: every review)")
	return cmd
}

func newRollupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "rollup products|reviews",
		Short:     "Compute the product type or review rating rollup",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"products", "reviews"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.collectionArg(args[0])
			if err != nil {
				return err
			}
			var rows []schema.Document
			if name == a.cfg.Collections.Products {
				rows, err = a.catalog.ProductTypeRollup(cmd.Context())
			} else {
				rows, err = a.catalog.ReviewStarsRollup(cmd.Context())
			}
			if err != nil {
				return err
			}
			return a.printDocuments(cmd.OutOrStdout(), rows)
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	var typed bool
	cmd := &cobra.Command{
		Use:       "show products|reviews",
		Short:     "List the documents of a catalog collection",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"products", "reviews"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.collectionArg(args[0])
			if err != nil {
				return err
			}
			docs, err := a.catalog.List(cmd.Context(), name, nil)
			if err != nil {
				return err
			}
			if !typed {
				return a.printDocuments(cmd.OutOrStdout(), docs)
			}

			decode := func(doc schema.Document) (any, error) { return patterns.AsReview(doc) }
			if name == a.cfg.Collections.Products {
				decode = func(doc schema.Document) (any, error) { return patterns.AsProduct(doc) }
			}
			views := make([]any, 0, len(docs))
			for _, doc := range docs {
				v, err := decode(doc)
				if err != nil {
					return err
				}
				views = append(views, v)
			}
			return a.print(cmd.OutOrStdout(), views, func(w io.Writer) {
				for _, v := range views {
					fmt.Fprintf(w, "%+v\n", v)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&typed, "typed", false, "decode documents into their migrated shape")
	return cmd
}

// parseID reads an identifier as JSON so numeric ids stay numbers. Anything that is
// not a JSON scalar is taken as a string.
func parseID(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case float64, string, bool:
		return v
	}
	return s
}

// print writes v as indented JSON with --json and through text otherwise.
func (a *app) print(w io.Writer, v any, text func(io.Writer)) error {
	if !a.jsonOutput {
		text(w)
		return nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func (a *app) printDocuments(w io.Writer, docs []schema.Document) error {
	return a.print(w, docs, func(w io.Writer) {
		lines := lo.Map(docs, func(d schema.Document, _ int) string {
			b, err := json.Marshal(d)
			if err != nil {
				return fmt.Sprintf("%v", map[string]any(d))
			}
			return string(b)
		})
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	})
}
