package models

import "github.com/shopspring/decimal"

type DashboardMetrics struct {
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	OutstandingCount int64           `json:"outstanding_count"`
	OverdueAmount    decimal.Decimal `json:"overdue_amount"`
	OverdueCount     int64           `json:"overdue_count"`
	PaidThisMonth    decimal.Decimal `json:"paid_this_month"`
	PaidYearToDate   decimal.Decimal `json:"paid_year_to_date"`
	DraftCount       int64           `json:"draft_count"`
}
