package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/pkg/imagedata"
	"go-inventory-ledger/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "go-inventory-ledger/service"

	// quantityScale is the number of decimal places a quantity may carry.
	quantityScale = 8

	skuAttempts = 5
)

// maxQuantity is the smallest value a decimal(20,8) column cannot hold.
var maxQuantity = decimal.New(1, 20-quantityScale)

type OptionInput struct {
	Value string           `json:"value" validate:"required,max=100"`
	Stock *decimal.Decimal `json:"stock"`
	SKU   string           `json:"sku" validate:"omitempty,max=255"`
}

type VariantInput struct {
	Name    string        `json:"name" validate:"required,max=100"`
	Options []OptionInput `json:"options" validate:"dive"`
}

// CreateProductInput is a product with its whole variant tree. Number and
// code are generated when left empty.
type CreateProductInput struct {
	ProductNumber *int64         `json:"product_number" validate:"omitempty,gt=0"`
	ProductCode   string         `json:"product_code" validate:"omitempty,max=255"`
	Name          string         `json:"name" validate:"required,max=255"`
	HSNCode       *string        `json:"hsn_code" validate:"omitempty,max=255"`
	IsFavourite   bool           `json:"is_favourite"`
	Image         string         `json:"image"`
	Variants      []VariantInput `json:"variants" validate:"dive"`
}

type CatalogService interface {
	CreateProduct(ctx context.Context, in CreateProductInput, actor Actor) (*model.Product, error)
	PreviewNextCode(ctx context.Context) (int64, string, error)
	SetActive(ctx context.Context, productID uuid.UUID, active bool, actor Actor) (*model.Product, error)
}

// CatalogOptions tune product creation.
type CatalogOptions struct {
	// LogOpeningStock writes one IN transaction per SKU created with
	// non-zero stock, so every balance is derivable from the ledger.
	LogOpeningStock bool
}

type catalogService struct {
	txm      repository.TxManager
	products repository.ProductRepository
	observer Observer
	opts     CatalogOptions
	now      func() time.Time
	tracer   trace.Tracer
}

func NewCatalogService(txm repository.TxManager, products repository.ProductRepository, obs Observer, opts CatalogOptions) CatalogService {
	if obs == nil {
		obs = NopObserver{}
	}
	return &catalogService{
		txm:      txm,
		products: products,
		observer: obs,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		tracer:   otel.Tracer(tracerName),
	}
}

func (s *catalogService) CreateProduct(ctx context.Context, in CreateProductInput, actor Actor) (*model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.CreateProduct")
	defer span.End()

	product, err := s.createProduct(ctx, in, actor)

	event := Event{Stage: StageCatalogCreate, ActorID: actor.ID, ActorName: actor.Name, At: s.now()}
	if err != nil {
		event.Outcome, event.Reason = outcomeOf(err), err.Error()
		event.ProductName = in.Name
		s.observer.Observe(ctx, event)
		recordSpanError(span, err)
		return nil, err
	}

	event.Outcome = OutcomeCommitted
	event.ProductID, event.ProductName, event.TotalAfter = product.ID, product.Name, product.TotalStock
	s.observer.Observe(ctx, event)
	span.SetAttributes(
		attribute.String("product.id", product.ID.String()),
		attribute.String("product.code", product.ProductCode),
	)
	return product, nil
}

func (s *catalogService) createProduct(ctx context.Context, in CreateProductInput, actor Actor) (*model.Product, error) {
	if err := validateCreateInput(&in); err != nil {
		return nil, err
	}

	total := decimal.Zero
	supplied := map[string]bool{}
	for i, v := range in.Variants {
		for j, o := range v.Options {
			field := fmt.Sprintf("variants[%d].options[%d]", i, j)
			if o.Stock != nil {
				if err := checkStock(field+".stock", *o.Stock); err != nil {
					return nil, err
				}
				total = total.Add(*o.Stock)
			}
			if o.SKU == "" {
				continue
			}
			if supplied[o.SKU] {
				return nil, &ValidationError{Field: field + ".sku", Message: fmt.Sprintf("sku %q is repeated in the request", o.SKU)}
			}
			supplied[o.SKU] = true
		}
	}
	if total.GreaterThanOrEqual(maxQuantity) {
		return nil, &ValidationError{Field: "variants", Message: fmt.Sprintf("total stock must be less than %s", maxQuantity)}
	}

	var image *imagedata.Image
	if in.Image != "" {
		image = imagedata.Decode(in.Image)
	}

	var product *model.Product
	err := s.txm.WithinTx(ctx, func(r repository.TxRepos) error {
		number, code, err := s.resolveIdentity(ctx, r.Products(), in)
		if err != nil {
			return err
		}

		skus, err := assignSKUs(ctx, r.SubVariants(), in.Variants, supplied)
		if err != nil {
			return err
		}

		now := s.now()
		product = &model.Product{
			BaseModel:     model.BaseModel{CreatedAt: now},
			ProductNumber: number,
			ProductCode:   code,
			Name:          in.Name,
			HSNCode:       in.HSNCode,
			IsFavourite:   in.IsFavourite,
			Active:        true,
			TotalStock:    total,
			CreatedUserID: actor.ID,
		}
		if image != nil {
			product.Image, product.ImageContentType = image.Data, image.ContentType
		}
		if err := r.Products().Create(ctx, product); err != nil {
			return err
		}

		for i, vin := range in.Variants {
			variant := model.Variant{ProductID: product.ID, Name: vin.Name}
			if err := r.Variants().Create(ctx, &variant); err != nil {
				return err
			}

			for j, oin := range vin.Options {
				sv := model.SubVariant{VariantID: variant.ID, Value: oin.Value, SKU: skus[i][j], Stock: decimal.Zero}
				if oin.Stock != nil {
					sv.Stock = *oin.Stock
				}
				if err := r.SubVariants().Create(ctx, &sv); err != nil {
					return err
				}

				if s.opts.LogOpeningStock && sv.Stock.IsPositive() {
					opening := model.StockTransaction{
						SubVariantID: sv.ID,
						Quantity:     sv.Stock,
						Type:         model.TxIn,
						BalanceAfter: sv.Stock,
						CreatedByID:  actorRef(actor),
					}
					if err := r.Transactions().Create(ctx, &opening); err != nil {
						return err
					}
				}
				variant.Options = append(variant.Options, sv)
			}
			product.Variants = append(product.Variants, variant)
		}
		return nil
	})
	if err != nil {
		return nil, classify("create product", err)
	}
	return product, nil
}

// resolveIdentity settles the product number and code, generating what the
// input left empty, and checks both against the store.
func (s *catalogService) resolveIdentity(ctx context.Context, products repository.ProductRepository, in CreateProductInput) (int64, string, error) {
	var number int64
	if in.ProductNumber != nil {
		number = *in.ProductNumber
	} else {
		n, err := nextProductNumber(ctx, products)
		if err != nil {
			return 0, "", err
		}
		number = n
	}

	code := strings.TrimSpace(in.ProductCode)
	if code == "" {
		code = ProductCode(number)
	}

	exists, err := products.ExistsNumber(ctx, number)
	if err != nil {
		return 0, "", err
	}
	if exists {
		return 0, "", &ValidationError{Field: "product_number", Message: fmt.Sprintf("product number %d already exists", number)}
	}

	exists, err = products.ExistsCode(ctx, code)
	if err != nil {
		return 0, "", err
	}
	if exists {
		return 0, "", &ValidationError{Field: "product_code", Message: fmt.Sprintf("product code %q already exists", code)}
	}
	return number, code, nil
}

// assignSKUs returns the SKU of every option, indexed like the input.
// Supplied SKUs must be new to the store; generated ones are retried
// until they collide with nothing.
func assignSKUs(ctx context.Context, subVariants repository.SubVariantRepository, variants []VariantInput, supplied map[string]bool) ([][]string, error) {
	skus := make([][]string, len(variants))
	var wanted []string
	for i, v := range variants {
		skus[i] = make([]string, len(v.Options))
		for j, o := range v.Options {
			skus[i][j] = o.SKU
			if o.SKU != "" {
				wanted = append(wanted, o.SKU)
			}
		}
	}

	taken, err := subVariants.ExistingSKUs(ctx, wanted)
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, &ValidationError{Field: "sku", Message: fmt.Sprintf("sku %q already exists", taken[0])}
	}

	used := make(map[string]bool, len(supplied))
	for sku := range supplied {
		used[sku] = true
	}

	type slot struct{ i, j int }
	var pending []slot
	for i := range skus {
		for j := range skus[i] {
			if skus[i][j] == "" {
				pending = append(pending, slot{i, j})
			}
		}
	}

	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt == skuAttempts {
			return nil, errors.New("could not generate unique skus")
		}

		batch := make([]string, 0, len(pending))
		for _, p := range pending {
			sku := newSKU()
			for used[sku] {
				sku = newSKU()
			}
			used[sku] = true
			skus[p.i][p.j] = sku
			batch = append(batch, sku)
		}

		taken, err := subVariants.ExistingSKUs(ctx, batch)
		if err != nil {
			return nil, err
		}
		collided := make(map[string]bool, len(taken))
		for _, sku := range taken {
			collided[sku] = true
		}

		var retry []slot
		for _, p := range pending {
			if collided[skus[p.i][p.j]] {
				retry = append(retry, p)
			}
		}
		pending = retry
	}
	return skus, nil
}

func (s *catalogService) PreviewNextCode(ctx context.Context) (int64, string, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.PreviewNextCode")
	defer span.End()

	number, err := nextProductNumber(ctx, s.products)
	if err != nil {
		err = classify("preview product code", err)
		recordSpanError(span, err)
		return 0, "", err
	}
	return number, ProductCode(number), nil
}

func (s *catalogService) SetActive(ctx context.Context, productID uuid.UUID, active bool, actor Actor) (*model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.SetActive",
		trace.WithAttributes(attribute.String("product.id", productID.String()), attribute.Bool("product.active", active)))
	defer span.End()

	var product *model.Product
	err := s.txm.WithinTx(ctx, func(r repository.TxRepos) error {
		if err := r.Products().SetActive(ctx, productID, active, s.now()); err != nil {
			return notFoundAs(err, "product", productID)
		}
		p, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		err = classify("set product active", err)
		recordSpanError(span, err)
		return nil, err
	}
	return product, nil
}

func validateCreateInput(in *CreateProductInput) error {
	errs := validator.ValidateStruct(in)
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	return &ValidationError{
		Field:   first.Field,
		Message: fmt.Sprintf("failed on '%s'", first.Tag),
	}
}

func checkStock(field string, q decimal.Decimal) error {
	if q.IsNegative() {
		return &ValidationError{Field: field, Message: "must not be negative"}
	}
	if !q.Equal(q.Truncate(quantityScale)) {
		return &ValidationError{Field: field, Message: fmt.Sprintf("at most %d decimal places", quantityScale)}
	}
	if q.GreaterThanOrEqual(maxQuantity) {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be less than %s", maxQuantity)}
	}
	return nil
}

func actorRef(a Actor) *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}

// notFoundAs replaces repository.ErrNotFound with a NotFoundError for the
// given entity.
func notFoundAs(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}

func outcomeOf(err error) Outcome {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return OutcomeFailed
	}
	return OutcomeRejected
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
