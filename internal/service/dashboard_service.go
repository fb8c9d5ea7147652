package service

import (
	"context"
	"time"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	defaultMovementDays = 7
	maxMovementDays     = 90
)

// LowStockThreshold is the SKU stock under which the dashboard counts a
// SKU as running low.
var LowStockThreshold = decimal.NewFromInt(10)

// DailyMovement is the IN and OUT volume of one store-local day.
type DailyMovement struct {
	Date     string          `json:"date"`
	Inbound  decimal.Decimal `json:"inbound"`
	Outbound decimal.Decimal `json:"outbound"`
}

type DashboardService interface {
	// StockMovement returns one entry per day for the last days days,
	// today included, oldest first. Days without movement are zero.
	StockMovement(ctx context.Context, days int) ([]DailyMovement, error)
	Stats(ctx context.Context) (*repository.CatalogStats, error)
}

type dashboardService struct {
	products     repository.ProductRepository
	transactions repository.TransactionRepository
	loc          *time.Location
	now          func() time.Time
}

func NewDashboardService(products repository.ProductRepository, transactions repository.TransactionRepository, loc *time.Location) DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &dashboardService{products: products, transactions: transactions, loc: loc, now: time.Now}
}

func (s *dashboardService) StockMovement(ctx context.Context, days int) ([]DailyMovement, error) {
	if days <= 0 {
		days = defaultMovementDays
	}
	if days > maxMovementDays {
		days = maxMovementDays
	}

	today := s.now().In(s.loc)
	first := time.Date(today.Year(), today.Month(), today.Day()-(days-1), 0, 0, 0, 0, s.loc)
	until := time.Date(today.Year(), today.Month(), today.Day()+1, 0, 0, 0, 0, s.loc)

	points, err := s.transactions.Movements(ctx, first.UTC(), until.UTC())
	if err != nil {
		return nil, classify("stock movement", err)
	}

	series := make([]DailyMovement, days)
	index := make(map[string]int, days)
	for i := range series {
		date := first.AddDate(0, 0, i).Format(dateLayout)
		series[i] = DailyMovement{Date: date, Inbound: decimal.Zero, Outbound: decimal.Zero}
		index[date] = i
	}
	for _, p := range points {
		i, ok := index[p.CreatedAt.In(s.loc).Format(dateLayout)]
		if !ok {
			continue
		}
		switch p.Type {
		case model.TxIn:
			series[i].Inbound = series[i].Inbound.Add(p.Quantity)
		case model.TxOut:
			series[i].Outbound = series[i].Outbound.Add(p.Quantity)
		}
	}
	return series, nil
}

func (s *dashboardService) Stats(ctx context.Context) (*repository.CatalogStats, error) {
	stats, err := s.products.Stats(ctx, LowStockThreshold)
	if err != nil {
		return nil, classify("dashboard stats", err)
	}
	return &stats, nil
}
