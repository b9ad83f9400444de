package ui

import (
	"time"

	"treblereport/internal/months"
	"treblereport/internal/report"
	"treblereport/internal/session"
)

// UploadRequest carries the decode options posted with a file
type UploadRequest struct {
	Encoding    string `form:"encoding"`
	Delimiter   string `form:"delimiter"`
	Sheet       string `form:"sheet"`
	FixMojibake *bool  `form:"fix_mojibake"`
}

// MonthsQuery selects the date columns and parse mode for the year/month pickers
type MonthsQuery struct {
	DateColumn       string `form:"date_column" binding:"required"`
	FallbackColumn   string `form:"fallback_date_column"`
	ParseMode        string `form:"parse_mode"`
	RegexPattern     string `form:"regex_pattern"`
	StrictMonthRange bool   `form:"strict_month_range"`
}

// ExportQuery selects the locale of display exports, the column of a single count table and
// the month CSV delimiter (comma by default)
type ExportQuery struct {
	Column    string `form:"column"`
	Locale    string `form:"locale"`
	Delimiter string `form:"delimiter"`
}

// DatasetResponse describes a loaded upload
type DatasetResponse struct {
	ID                    string    `json:"id"`
	FileName              string    `json:"file_name"`
	Headers               []string  `json:"headers"`
	Rows                  int       `json:"rows"`
	DateColumnCandidates  []string  `json:"date_column_candidates"`
	SummaryColumnDefaults []string  `json:"summary_column_defaults"`
	CreatedAt             time.Time `json:"created_at"`
	HasReport             bool      `json:"has_report"`
}

// MonthOption is one entry of the month picker
type MonthOption struct {
	Month int    `json:"month"`
	Key   string `json:"key"`
	Label string `json:"label"`
}

// MonthsResponse feeds the year/month pickers
type MonthsResponse struct {
	Years        []int                 `json:"years"`
	Months       map[int][]MonthOption `json:"months"`
	DefaultYear  int                   `json:"default_year"`
	DefaultMonth int                   `json:"default_month"`
	ValidRows    int                   `json:"valid_rows"`
	InvalidRows  int                   `json:"invalid_rows"`
}

// ReportResponse is the assembled dashboard plus its display-formatted KPI table
type ReportResponse struct {
	Report         *report.Result      `json:"report"`
	DisplayHeaders []string            `json:"display_headers"`
	KPIsDisplay    []report.DisplayRow `json:"kpis_display"`
	Locale         string              `json:"locale"`
}

func datasetResponse(sess session.Session) DatasetResponse {
	t := sess.Table
	return DatasetResponse{
		ID:                    sess.ID.String(),
		FileName:              sess.FileName,
		Headers:               t.Headers,
		Rows:                  len(t.Rows),
		DateColumnCandidates:  months.SuggestDateColumns(t.Headers),
		SummaryColumnDefaults: report.DefaultSummaryColumns(t.Headers),
		CreatedAt:             sess.CreatedAt,
		HasReport:             sess.Report != nil,
	}
}
