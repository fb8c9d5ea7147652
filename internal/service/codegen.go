package service

import (
	"context"
	"fmt"
	"strings"

	"go-inventory-ledger/internal/repository"

	"github.com/google/uuid"
)

const firstProductNumber int64 = 1000

// ProductCode is the human code of a product number.
func ProductCode(number int64) string {
	return fmt.Sprintf("PROD-%d", number)
}

// nextProductNumber is max+1, or 1000 on an empty catalog. It reserves
// nothing; the unique index on product_number settles a race.
func nextProductNumber(ctx context.Context, products repository.ProductRepository) (int64, error) {
	max, err := products.MaxProductNumber(ctx)
	if err != nil {
		return 0, err
	}
	if max < firstProductNumber {
		return firstProductNumber, nil
	}
	return max + 1, nil
}

// newSKU returns "SKU-" plus 8 hex chars of a fresh UUID.
func newSKU() string {
	return "SKU-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
