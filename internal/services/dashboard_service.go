package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"networth/internal/cache"
	"networth/internal/core"
)

type Period string

const (
	PeriodDaily     Period = "Daily"
	PeriodWeekly    Period = "Weekly"
	PeriodMonthly   Period = "Monthly"
	PeriodQuarterly Period = "Quarterly"
	PeriodAnnual    Period = "Annual"
	PeriodCustom    Period = "Custom"
)

const (
	trendPoints = 7
	recentLimit = 5
)

// ParsePeriod accepts any casing; empty means Monthly.
func ParsePeriod(s string) (Period, error) {
	if strings.TrimSpace(s) == "" {
		return PeriodMonthly, nil
	}
	for _, p := range []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodAnnual, PeriodCustom} {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", core.NewValidationError("period", "must be Daily, Weekly, Monthly, Quarterly, Annual or Custom")
}

// DashboardQuery selects the window. StartDate and EndDate are only used, and
// then required, for PeriodCustom.
type DashboardQuery struct {
	Period    Period
	StartDate time.Time
	EndDate   time.Time
}

type TrendPoint struct {
	Date    time.Time
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// RecentItem is one row of the recent activity list. Kind is "transaction" or
// "expense"; expenses only appear when they are not mirrors of a transaction.
type RecentItem struct {
	ID          string
	Kind        string
	Type        core.TransactionType
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	Merchant    string
	Category    string
}

type DashboardSummary struct {
	Period       Period
	From         time.Time
	To           time.Time
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Net          decimal.Decimal
	ByCategory   []core.CategoryAmount
	Recent       []RecentItem
	Trend        []TrendPoint
}

// DashboardReader is the read-only slice of the store the aggregator needs.
type DashboardReader interface {
	TransactionsBetween(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error)
	ExpensesBetween(ctx context.Context, userID string, from, to time.Time) ([]core.ExpenseRecord, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
}

// DashboardService summarises a user's ledger over a window. It never writes.
type DashboardService struct {
	reader DashboardReader
	cache  cache.Cache[DashboardSummary]
	now    func() time.Time
}

// NewDashboardService builds the aggregator; summaries may be nil to disable caching.
func NewDashboardService(reader DashboardReader, summaries cache.Cache[DashboardSummary]) *DashboardService {
	return &DashboardService{reader: reader, cache: summaries, now: time.Now}
}

// Invalidate drops cached summaries of a user. Wire it as a commit hook of the
// transaction service.
func (s *DashboardService) Invalidate(_ context.Context, userID string) {
	if s.cache != nil {
		s.cache.Invalidate(userID)
	}
}

func (s *DashboardService) Summarize(ctx context.Context, userID string, q DashboardQuery) (DashboardSummary, error) {
	if q.Period == "" {
		q.Period = PeriodMonthly
	}
	from, to, err := ResolveWindow(q, s.now())
	if err != nil {
		return DashboardSummary{}, err
	}

	key := cacheKey(q, from)
	if s.cache != nil {
		if cached, ok := s.cache.Get(userID, key); ok {
			return cached, nil
		}
	}

	var (
		txs        []core.Transaction
		expenses   []core.ExpenseRecord
		categories []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.reader.TransactionsBetween(gctx, userID, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.reader.ExpensesBetween(gctx, userID, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.reader.ListCategories(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return DashboardSummary{}, fmt.Errorf("load dashboard data: %w", err)
	}

	summary := aggregate(q.Period, from, to, txs, expenses, categories)
	if s.cache != nil {
		s.cache.Set(userID, key, summary)
	}
	return summary, nil
}

// ResolveWindow turns a query into a closed [from, to] window in UTC.
func ResolveWindow(q DashboardQuery, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	switch q.Period {
	case PeriodDaily:
		return startOfDay(now), now, nil
	case PeriodWeekly:
		return now.AddDate(0, 0, -7), now, nil
	case PeriodMonthly, "":
		return now.AddDate(0, -1, 0), now, nil
	case PeriodQuarterly:
		return now.AddDate(0, -3, 0), now, nil
	case PeriodAnnual:
		return now.AddDate(-1, 0, 0), now, nil
	case PeriodCustom:
		if q.StartDate.IsZero() || q.EndDate.IsZero() {
			return time.Time{}, time.Time{}, core.NewValidationError("startDate", "startDate and endDate are required for Custom")
		}
		from := startOfDay(q.StartDate.UTC())
		to := startOfDay(q.EndDate.UTC()).Add(24*time.Hour - time.Millisecond)
		if from.After(to) {
			return time.Time{}, time.Time{}, core.NewValidationError("startDate", "must not be after endDate")
		}
		return from, to, nil
	default:
		return time.Time{}, time.Time{}, core.NewValidationError("period", fmt.Sprintf("unknown period %q", q.Period))
	}
}

func aggregate(period Period, from, to time.Time, txs []core.Transaction, expenses []core.ExpenseRecord, categories []core.Category) DashboardSummary {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	categoryOf := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return core.UncategorizedLabel
	}

	summary := DashboardSummary{
		Period:       period,
		From:         from,
		To:           to,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Trend:        trendBuckets(from, to),
	}
	byCategory := map[string]decimal.Decimal{}
	var recent []RecentItem

	for _, t := range txs {
		if t.Type == core.Income {
			summary.TotalIncome = summary.TotalIncome.Add(t.Amount)
			addToTrend(summary.Trend, t.Date, t.Amount, decimal.Zero)
		} else if !t.NeedsExpenseMirror() {
			// no mirror row exists, so the spending is only visible here
			name := categoryOf(t.CategoryID)
			byCategory[name] = byCategory[name].Add(t.Amount)
		}
		recent = append(recent, RecentItem{
			ID: t.ID, Kind: "transaction", Type: t.Type, Amount: t.Amount, Date: t.Date,
			Description: t.Description, Merchant: t.Merchant, Category: categoryOf(t.CategoryID),
		})
	}

	for _, e := range expenses {
		summary.TotalExpense = summary.TotalExpense.Add(e.Amount)
		byCategory[e.Category] = byCategory[e.Category].Add(e.Amount)
		addToTrend(summary.Trend, e.Date, decimal.Zero, e.Amount)
		if e.TransactionID == "" {
			recent = append(recent, RecentItem{
				ID: e.ID, Kind: "expense", Type: core.Expense, Amount: e.Amount, Date: e.Date,
				Description: e.Description, Merchant: e.Merchant, Category: e.Category,
			})
		}
	}
	summary.Net = summary.TotalIncome.Sub(summary.TotalExpense)

	for name, amt := range byCategory {
		summary.ByCategory = append(summary.ByCategory, core.CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(summary.ByCategory, func(i, j int) bool {
		a, b := summary.ByCategory[i], summary.ByCategory[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})

	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date.After(recent[j].Date) })
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	summary.Recent = recent
	return summary
}

// trendBuckets splits [from, to] into evenly spaced points, each dated at the
// start of its bucket.
func trendBuckets(from, to time.Time) []TrendPoint {
	step := to.Sub(from) / trendPoints
	points := make([]TrendPoint, trendPoints)
	for i := range points {
		points[i] = TrendPoint{
			Date:    from.Add(time.Duration(i) * step),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
		}
	}
	return points
}

func addToTrend(points []TrendPoint, at time.Time, income, expense decimal.Decimal) {
	if len(points) == 0 || at.Before(points[0].Date) {
		return
	}
	idx := len(points) - 1
	for i := 1; i < len(points); i++ {
		if at.Before(points[i].Date) {
			idx = i - 1
			break
		}
	}
	points[idx].Income = points[idx].Income.Add(income)
	points[idx].Expense = points[idx].Expense.Add(expense)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// cacheKey anchors rolling periods on the day their window starts, so a
// cached summary never outlives the day it was computed for.
func cacheKey(q DashboardQuery, from time.Time) string {
	key := string(q.Period)
	if q.Period == PeriodCustom {
		return key + "|" + q.StartDate.UTC().Format("2006-01-02") + "|" + q.EndDate.UTC().Format("2006-01-02")
	}
	return key + "|" + from.UTC().Format("2006-01-02")
}
