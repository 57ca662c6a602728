package account

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
)

// Static serves a fixed account snapshot from config.
type Static struct {
	state models.AccountState
}

func NewStatic(equity, leverage float64) *Static {
	return &Static{state: models.AccountState{Equity: equity, Leverage: leverage}}
}

func (s *Static) Account(context.Context) (models.AccountState, error) {
	return s.state, nil
}

// File reads the equity from a virtual wallet file on every call, so a
// rewritten file takes effect without a restart.
// file schema: {"capital": 1000.0, "currency": "USD"}
type File struct {
	path     string
	leverage float64
}

func NewFile(path string, leverage float64) *File {
	return &File{path: path, leverage: leverage}
}

func (f *File) Account(context.Context) (models.AccountState, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return models.AccountState{}, fmt.Errorf("read wallet file: %w", err)
	}
	var m struct {
		Capital  float64 `json:"capital"`
		Currency string  `json:"currency"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return models.AccountState{}, fmt.Errorf("parse wallet file: %w", err)
	}
	return models.AccountState{Equity: m.Capital, Leverage: f.leverage}, nil
}

var (
	_ drepo.AccountSource = (*Static)(nil)
	_ drepo.AccountSource = (*File)(nil)
)
