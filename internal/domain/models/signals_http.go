package models

// Requests for the scan HTTP endpoints. Defined in domain for consistency and reuse.

type LatestScanRequest struct {
	Top int `query:"top" json:"top" default:"0" validate:"gte=0,lte=100"`
}

type SignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,min=1"`
	Side   string `query:"side" json:"side" validate:"omitempty,oneof=long short"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=15m 1h 4h"`
	N      int    `query:"n" json:"n" default:"200" validate:"gte=1,lte=1000"`
}
