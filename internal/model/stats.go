package model

// LibraryStats is the aggregate snapshot consumed by external reporting.
type LibraryStats struct {
	TitleCount       int              `json:"title_count"`
	CopyCount        int              `json:"copy_count"`
	ReaderCount      int              `json:"reader_count"`
	OpenLoanCount    int              `json:"open_loan_count"`
	OverdueLoanCount int              `json:"overdue_loan_count"`
	MostBorrowed     []TitleLoanCount `json:"most_borrowed"`
}

// TitleLoanCount is one row of the most-borrowed ranking.
type TitleLoanCount struct {
	TitleID   string `json:"title_id"`
	TitleName string `json:"title_name"`
	LoanCount int    `json:"loan_count"`
}

// MonthlyLoanTrend is one (month, category) bucket of loan history, the
// data feed for externally-generated trend charts.
type MonthlyLoanTrend struct {
	Month     string `json:"month"` // YYYY-MM
	Category  string `json:"category"`
	LoanCount int    `json:"loan_count"`
}
