package service

import (
	"context"
	"strconv"
	"time"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/pkg/cursor"
	"go-inventory-ledger/pkg/imagedata"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100

	dateLayout = "2006-01-02"
)

// Page is one keyset page. NextCursor is empty on the last page.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// TransactionQuery holds the raw YYYY-MM-DD bounds of a ledger listing.
// Both are inclusive whole days; empty means unbounded.
type TransactionQuery struct {
	StartDate string
	EndDate   string
}

type QueryService interface {
	ListActiveProducts(ctx context.Context, token string, pageSize int) (*Page[model.Product], error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	GetProductImage(ctx context.Context, id uuid.UUID) (*imagedata.Image, error)
	ListTransactions(ctx context.Context, q TransactionQuery, token string, pageSize int) (*Page[repository.TransactionView], error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*repository.TransactionView, error)
}

type queryService struct {
	products     repository.ProductRepository
	transactions repository.TransactionRepository
	loc          *time.Location
	tracer       trace.Tracer
}

// NewQueryService reads date filters in loc. A nil loc means UTC.
func NewQueryService(products repository.ProductRepository, transactions repository.TransactionRepository, loc *time.Location) QueryService {
	if loc == nil {
		loc = time.UTC
	}
	return &queryService{
		products:     products,
		transactions: transactions,
		loc:          loc,
		tracer:       otel.Tracer(tracerName),
	}
}

func (s *queryService) ListActiveProducts(ctx context.Context, token string, pageSize int) (*Page[model.Product], error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.ListActiveProducts")
	defer span.End()

	limit := pageLimit(pageSize)

	var after *repository.ProductKey
	pos, err := cursor.Decode(token)
	if err != nil {
		return nil, &InvalidFilterError{Param: "cursor", Value: token}
	}
	if pos != nil {
		number, err := strconv.ParseInt(pos.Key, 10, 64)
		if err != nil {
			return nil, &InvalidFilterError{Param: "cursor", Value: token}
		}
		after = &repository.ProductKey{CreatedAt: pos.CreatedAt, ProductNumber: number}
	}

	products, err := s.products.ListActive(ctx, after, limit+1)
	if err != nil {
		err = classify("list products", err)
		recordSpanError(span, err)
		return nil, err
	}

	page := &Page[model.Product]{Items: products}
	if len(products) > limit {
		page.Items = products[:limit]
		last := page.Items[limit-1]
		page.NextCursor = cursor.Encode(cursor.Position{
			CreatedAt: last.CreatedAt,
			Key:       strconv.FormatInt(last.ProductNumber, 10),
		})
	}
	if page.Items == nil {
		page.Items = []model.Product{}
	}
	span.SetAttributes(attribute.Int("page.items", len(page.Items)))
	return page, nil
}

func (s *queryService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.products.FindWithVariants(ctx, id)
	if err != nil {
		return nil, classify("get product", notFoundAs(err, "product", id))
	}
	return product, nil
}

// GetProductImage returns a NotFoundError when the product has no image.
func (s *queryService) GetProductImage(ctx context.Context, id uuid.UUID) (*imagedata.Image, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, classify("get product image", notFoundAs(err, "product", id))
	}
	if !product.HasImage() {
		return nil, &NotFoundError{Entity: "product image", ID: id}
	}
	return &imagedata.Image{Data: product.Image, ContentType: product.ImageContentType}, nil
}

func (s *queryService) ListTransactions(ctx context.Context, q TransactionQuery, token string, pageSize int) (*Page[repository.TransactionView], error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.ListTransactions", trace.WithAttributes(
		attribute.String("filter.start_date", q.StartDate),
		attribute.String("filter.end_date", q.EndDate),
	))
	defer span.End()

	filter, err := s.dateFilter(q)
	if err != nil {
		return nil, err
	}
	limit := pageLimit(pageSize)

	var after *repository.TransactionKey
	pos, err := cursor.Decode(token)
	if err != nil {
		return nil, &InvalidFilterError{Param: "cursor", Value: token}
	}
	if pos != nil {
		id, err := uuid.Parse(pos.Key)
		if err != nil {
			return nil, &InvalidFilterError{Param: "cursor", Value: token}
		}
		after = &repository.TransactionKey{CreatedAt: pos.CreatedAt, ID: id}
	}

	rows, err := s.transactions.List(ctx, filter, after, limit+1)
	if err != nil {
		err = classify("list transactions", err)
		recordSpanError(span, err)
		return nil, err
	}

	page := &Page[repository.TransactionView]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = cursor.Encode(cursor.Position{CreatedAt: last.CreatedAt, Key: last.ID.String()})
	}
	if page.Items == nil {
		page.Items = []repository.TransactionView{}
	}
	span.SetAttributes(attribute.Int("page.items", len(page.Items)))
	return page, nil
}

func (s *queryService) GetTransaction(ctx context.Context, id uuid.UUID) (*repository.TransactionView, error) {
	row, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		return nil, classify("get transaction", notFoundAs(err, "transaction", id))
	}
	return row, nil
}

// dateFilter turns whole-day bounds in s.loc into the UTC half-open range
// [start 00:00, end+1 00:00).
func (s *queryService) dateFilter(q TransactionQuery) (repository.TransactionFilter, error) {
	var f repository.TransactionFilter
	if q.StartDate != "" {
		start, err := time.ParseInLocation(dateLayout, q.StartDate, s.loc)
		if err != nil {
			return f, &InvalidFilterError{Param: "startDate", Value: q.StartDate}
		}
		from := start.UTC()
		f.From = &from
	}
	if q.EndDate != "" {
		end, err := time.ParseInLocation(dateLayout, q.EndDate, s.loc)
		if err != nil {
			return f, &InvalidFilterError{Param: "endDate", Value: q.EndDate}
		}
		until := end.AddDate(0, 0, 1).UTC()
		f.Until = &until
	}
	return f, nil
}

func pageLimit(size int) int {
	switch {
	case size <= 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	}
	return size
}
