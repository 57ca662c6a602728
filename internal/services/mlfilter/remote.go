package mlfilter

import (
	"context"
	"fmt"
	"time"

	"PerpScout/internal/domain/models"
	"PerpScout/internal/domain/service"
	xhttp "PerpScout/pkg/http"
)

const (
	scorePath      = "/v1/score"
	remoteAttempts = 2
)

// RemoteFilter delegates the probability estimate to an external model
// service over a single JSON POST: the candidate's identity and its
// normalized feature vector go out, a win probability comes back. Any
// transport or contract failure is wrapped in
// models.ErrFilterUnavailable so the caller passes the candidate
// through unchanged.
type RemoteFilter struct {
	cfg     Config
	baseURL string
	client  *xhttp.Client
}

// NewRemoteFilter builds a filter against the scorer at baseURL.
func NewRemoteFilter(cfg Config, baseURL string, timeout time.Duration) *RemoteFilter {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RemoteFilter{
		cfg:     cfg,
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type scoreReq struct {
	Symbol   string             `json:"symbol"`
	Side     string             `json:"side"`
	Regime   string             `json:"regime"`
	Style    string             `json:"style"`
	Features map[string]float64 `json:"features"`
}

type scoreResp struct {
	Probability float64 `json:"probability"`
}

// Evaluate posts the candidate to the scorer and maps the returned
// probability through the same bounds as the history filter. The remote
// model owns its own trade history, so the vector carries no win-rate.
func (r *RemoteFilter) Evaluate(ctx context.Context, f service.Features) (service.Adjustment, error) {
	v := Derive(f, -1)
	req := scoreReq{
		Symbol: f.Signal.Symbol,
		Side:   string(f.Signal.Side),
		Regime: string(f.Signal.Regime),
		Style:  string(f.Signal.Style),
		Features: map[string]float64{
			"boll_z":     v.BollZ,
			"rsi_dev":    v.RSIDev,
			"macd_mom":   v.MACDMom,
			"ema_spread": v.EMASpread,
		},
	}
	var resp scoreResp
	if err := r.post(ctx, scorePath, req, &resp); err != nil {
		return service.Adjustment{}, fmt.Errorf("remote score for %s (%v): %w",
			f.Signal.Symbol, err, models.ErrFilterUnavailable)
	}
	if resp.Probability < 0 || resp.Probability > 1 {
		return service.Adjustment{}, fmt.Errorf("remote score for %s (probability %v out of range): %w",
			f.Signal.Symbol, resp.Probability, models.ErrFilterUnavailable)
	}
	return adjustment(resp.Probability, r.cfg), nil
}

// post sends one JSON request, retrying after a short pause so a single
// dropped connection does not sideline the filter for a whole cycle.
func (r *RemoteFilter) post(ctx context.Context, path string, payload, dest interface{}) error {
	var err error
	for i := 1; i <= remoteAttempts; i++ {
		err = r.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    r.baseURL + path,
			Headers: map[string]string{
				"Content-Type": "application/json",
			},
			Body: payload,
		}, dest)
		if err == nil {
			return nil
		}
		if i == remoteAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

var _ service.SignalFilter = (*RemoteFilter)(nil)
