package models

// Request models for the HTTP API. Defaults and validation tags are applied
// by the shared request reader.

type ReportRequest struct {
	Limit int `query:"limit" default:"200" validate:"gte=1,lte=1000"`
}

type CandlesRequest struct {
	Instrument string `query:"instrument" validate:"required"`
	TF         string `query:"tf" default:"15m"`
	Limit      int    `query:"limit" default:"200" validate:"gte=1,lte=5000"`
	From       string `query:"from"` // RFC3339 or unix seconds, optional
}

type SignalRequest struct {
	Instrument string `query:"instrument" validate:"required"`
}

type VerdictRequest struct {
	Instrument string `json:"instrument" validate:"required"`
	Indicator  string `json:"indicator" validate:"required"`
	Long       bool   `json:"long"`
	Short      bool   `json:"short"`
}
