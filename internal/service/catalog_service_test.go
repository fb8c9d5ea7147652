package service

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestCatalog_CreateProduct_FourSKUs(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{LogOpeningStock: true})
	ctx := context.Background()

	p, err := env.catalog.CreateProduct(ctx, CreateProductInput{
		Name: "T-Shirt",
		Variants: []VariantInput{
			{Name: "Size", Options: []OptionInput{{Value: "S", Stock: qtyPtr("2")}, {Value: "M", Stock: qtyPtr("3")}}},
			{Name: "Color", Options: []OptionInput{{Value: "Red", Stock: qtyPtr("6")}, {Value: "Blue"}}},
		},
	}, env.actor)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), p.ProductNumber)
	assert.Equal(t, "PROD-1000", p.ProductCode)
	assert.True(t, p.Active)
	assert.True(t, p.TotalStock.Equal(qty("11")), p.TotalStock.String())
	assert.Equal(t, env.actor.ID, p.CreatedUserID)

	seen := map[string]bool{}
	for _, v := range p.Variants {
		for _, sv := range v.Options {
			assert.Regexp(t, `^SKU-[0-9a-f]{8}$`, sv.SKU)
			assert.False(t, seen[sv.SKU], "duplicate sku %s", sv.SKU)
			seen[sv.SKU] = true
		}
	}
	assert.Len(t, seen, 4)

	stored, err := env.products.FindWithVariants(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalStock.Equal(qty("11")))
	require.Len(t, stored.Variants, 2)
	assert.Equal(t, "Size", stored.Variants[0].Name)
	assert.Len(t, stored.Variants[1].Options, 2)

	// opening stock is logged for the three non-zero SKUs
	page, err := env.query.ListTransactions(ctx, TransactionQuery{}, "", 50)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)

	env.requireConsistent(t, p.ID)

	last := env.obs.last()
	assert.Equal(t, StageCatalogCreate, last.Stage)
	assert.Equal(t, OutcomeCommitted, last.Outcome)
	assert.True(t, last.TotalAfter.Equal(qty("11")))
}

func TestCatalog_CreateProduct_WithoutOpeningLog(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{})
	ctx := context.Background()

	p, svs := env.createSimple(t, "Mug", "4", "1.5")
	assert.True(t, p.TotalStock.Equal(qty("5.5")))

	page, err := env.query.ListTransactions(ctx, TransactionQuery{}, "", 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	audit, err := env.rec.AuditSubVariant(ctx, svs[0].ID)
	require.NoError(t, err)
	assert.False(t, audit.Consistent)
	assert.True(t, audit.Drift.Equal(qty("4")), "unlogged opening stock shows up as drift")
}

func TestCatalog_CreateProduct_GeneratesSequentialCodes(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{})
	ctx := context.Background()

	n, code, err := env.catalog.PreviewNextCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)
	assert.Equal(t, "PROD-1000", code)

	// preview does not reserve
	n, _, err = env.catalog.PreviewNextCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)

	explicit := int64(1500)
	_, err = env.catalog.CreateProduct(ctx, CreateProductInput{ProductNumber: &explicit, Name: "Bottle"}, env.actor)
	require.NoError(t, err)

	p, _ := env.createSimple(t, "Cap", "1")
	assert.Equal(t, int64(1501), p.ProductNumber)
	assert.Equal(t, "PROD-1501", p.ProductCode)

	_, code, err = env.catalog.PreviewNextCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PROD-1502", code)
}

func TestCatalog_CreateProduct_Rejections(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{LogOpeningStock: true})
	ctx := context.Background()

	_, existing := env.createSimple(t, "Existing", "1")
	number := int64(1000)

	cases := []struct {
		name  string
		in    CreateProductInput
		field string
	}{
		{
			name:  "missing name",
			in:    CreateProductInput{},
			field: "name",
		},
		{
			name: "missing option value",
			in: CreateProductInput{Name: "x", Variants: []VariantInput{
				{Name: "Size", Options: []OptionInput{{Value: "S"}, {}}},
			}},
			field: "variants[0].options[1].value",
		},
		{
			name: "negative stock",
			in: CreateProductInput{Name: "x", Variants: []VariantInput{
				{Name: "Size", Options: []OptionInput{{Value: "S", Stock: qtyPtr("-1")}}},
			}},
			field: "variants[0].options[0].stock",
		},
		{
			name: "too many decimals",
			in: CreateProductInput{Name: "x", Variants: []VariantInput{
				{Name: "Size", Options: []OptionInput{{Value: "S", Stock: qtyPtr("0.123456789")}}},
			}},
			field: "variants[0].options[0].stock",
		},
		{
			name: "stock too large",
			in: CreateProductInput{Name: "x", Variants: []VariantInput{
				{Name: "Size", Options: []OptionInput{{Value: "S", Stock: qtyPtr("1000000000000")}}},
			}},
			field: "variants[0].options[0].stock",
		},
		{
			name: "total too large",
			in: CreateProductInput{Name: "x", Variants: []VariantInput{
				{Name: "Size", Options: []OptionInput{
					{Value: "S", Stock: qtyPtr("600000000000")},
					{Value: "M", Stock: qtyPtr("400000000000")},
				}},
			}},
			field: "variants",
		},
		{
			name: "sku repeated in payload",
			in: CreateProductInput{Name: "x", Variants: []VariantInput{
				{Name: "Size", Options: []OptionInput{{Value: "S", SKU: "SKU-dup"}}},
				{Name: "Color", Options: []OptionInput{{Value: "Red", SKU: "SKU-dup"}}},
			}},
			field: "variants[1].options[0].sku",
		},
		{
			name: "sku already stored",
			in: CreateProductInput{Name: "x", Variants: []VariantInput{
				{Name: "Size", Options: []OptionInput{{Value: "S", SKU: existing[0].SKU}}},
			}},
			field: "sku",
		},
		{
			name:  "product number taken",
			in:    CreateProductInput{Name: "x", ProductNumber: &number},
			field: "product_number",
		},
		{
			name:  "product code taken",
			in:    CreateProductInput{Name: "x", ProductCode: "PROD-1000"},
			field: "product_code",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.catalog.CreateProduct(ctx, tc.in, env.actor)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)

			last := env.obs.last()
			assert.Equal(t, OutcomeRejected, last.Outcome)
		})
	}

	// nothing partial was written by any rejected attempt
	page, err := env.query.ListActiveProducts(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Existing", page.Items[0].Name)

	var variants int64
	require.NoError(t, env.db.Table("variants").Count(&variants).Error)
	assert.Equal(t, int64(1), variants)
}

func TestCatalog_CreateProduct_Image(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{})
	ctx := context.Background()

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)
	p, err := env.catalog.CreateProduct(ctx, CreateProductInput{Name: "Poster", Image: uri}, env.actor)
	require.NoError(t, err)
	assert.True(t, p.HasImage())

	img, err := env.query.GetProductImage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, pngHeader, img.Data)

	// a malformed payload means no image, not an error
	p, err = env.catalog.CreateProduct(ctx, CreateProductInput{Name: "Flyer", Image: "data:image/png;base64,@@@"}, env.actor)
	require.NoError(t, err)
	assert.False(t, p.HasImage())

	_, err = env.query.GetProductImage(ctx, p.ID)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestCatalog_SetActive(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{})
	ctx := context.Background()

	p, _ := env.createSimple(t, "Lamp", "1")

	updated, err := env.catalog.SetActive(ctx, p.ID, false, env.actor)
	require.NoError(t, err)
	assert.False(t, updated.Active)
	require.NotNil(t, updated.UpdatedAt)

	page, err := env.query.ListActiveProducts(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	// still readable directly
	got, err := env.query.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = env.catalog.SetActive(ctx, uuid.New(), true, env.actor)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "product", nf.Entity)
}
