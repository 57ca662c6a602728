package api

import (
	"time"

	"PerpScout/internal/domain/models"
	"PerpScout/internal/usecase"
)

// Wire projections for the scan API. Domain models carry no transport
// tags, so every response shape is mapped here.

type trendView struct {
	Short  string `json:"short"`
	Medium string `json:"medium"`
	Long   string `json:"long"`
}

type signalView struct {
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Score          float64   `json:"score"`
	Confidence     float64   `json:"confidence"`
	Regime         string    `json:"regime"`
	Style          string    `json:"style"`
	ReferencePrice float64   `json:"reference_price"`
	ATR            float64   `json:"atr"`
	Trends         trendView `json:"trends"`
	BarTime        time.Time `json:"bar_time"`
}

type structureView struct {
	Entry            float64 `json:"entry"`
	TakeProfit       float64 `json:"take_profit"`
	StopLoss         float64 `json:"stop_loss"`
	TrailingStop     float64 `json:"trailing_stop"`
	TrailActivation  float64 `json:"trail_activation"`
	PositionSize     float64 `json:"position_size"`
	MarginRequired   float64 `json:"margin_required"`
	LiquidationPrice float64 `json:"liquidation_price"`
	Leverage         float64 `json:"leverage"`
}

type recommendationView struct {
	Signal    signalView    `json:"signal"`
	Structure structureView `json:"structure"`
}

type scanView struct {
	StartedAt       time.Time            `json:"started_at"`
	FinishedAt      time.Time            `json:"finished_at"`
	Universe        int                  `json:"universe"`
	Recommendations []recommendationView `json:"recommendations"`
	Skips           map[string]int       `json:"skips"`
}

type candleView struct {
	T time.Time `json:"t"`
	O float64   `json:"o"`
	H float64   `json:"h"`
	L float64   `json:"l"`
	C float64   `json:"c"`
	V float64   `json:"v"`
}

type candlesView struct {
	Symbol    string       `json:"symbol"`
	Timeframe string       `json:"timeframe"`
	Count     int          `json:"count"`
	Candles   []candleView `json:"candles"`
}

func newSignalView(s models.Signal) signalView {
	return signalView{
		Symbol:         s.Symbol,
		Side:           string(s.Side),
		Score:          s.Score,
		Confidence:     s.Confidence,
		Regime:         string(s.Regime),
		Style:          string(s.Style),
		ReferencePrice: s.ReferencePrice,
		ATR:            s.ATR,
		Trends: trendView{
			Short:  string(s.Trends.Short),
			Medium: string(s.Trends.Medium),
			Long:   string(s.Trends.Long),
		},
		BarTime: s.BarTime.UTC(),
	}
}

func newStructureView(st models.TradeStructure) structureView {
	return structureView{
		Entry:            st.Entry,
		TakeProfit:       st.TakeProfit,
		StopLoss:         st.StopLoss,
		TrailingStop:     st.TrailingStop,
		TrailActivation:  st.TrailActivation,
		PositionSize:     st.PositionSize,
		MarginRequired:   st.MarginRequired,
		LiquidationPrice: st.LiquidationPrice,
		Leverage:         st.Leverage,
	}
}

func newRecommendationView(rec models.Recommendation) recommendationView {
	return recommendationView{
		Signal:    newSignalView(rec.Signal),
		Structure: newStructureView(rec.Structure),
	}
}

// newScanView projects one scan result, trimmed to the top k entries
// when top > 0.
func newScanView(res *models.ScanResult, top int) scanView {
	recs := res.Recommendations
	if top > 0 {
		recs = res.Top(top)
	}
	views := make([]recommendationView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newRecommendationView(rec))
	}
	skips := make(map[string]int, len(res.Skips))
	for reason, n := range res.Skips {
		skips[string(reason)] = n
	}
	return scanView{
		StartedAt:       res.StartedAt.UTC(),
		FinishedAt:      res.FinishedAt.UTC(),
		Universe:        res.Universe,
		Recommendations: views,
		Skips:           skips,
	}
}

func newCandlesView(res *usecase.CandleSeries) candlesView {
	candles := make([]candleView, 0, len(res.Candles))
	for _, b := range res.Candles {
		candles = append(candles, candleView{
			T: b.Timestamp.UTC(),
			O: b.Open,
			H: b.High,
			L: b.Low,
			C: b.Close,
			V: b.Volume,
		})
	}
	return candlesView{
		Symbol:    res.Symbol,
		Timeframe: res.Timeframe,
		Count:     res.Count,
		Candles:   candles,
	}
}
