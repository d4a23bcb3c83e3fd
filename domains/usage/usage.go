package usage

import (
	"context"
	"time"
)

// Record is one pipeline invocation. Cache hits never reach a pipeline and
// are not recorded.
type Record struct {
	ID        string    `json:"id"`
	Task      string    `json:"task"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	LatencyMs int64     `json:"latency_ms"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskTotals aggregates records of one task.
type TaskTotals struct {
	Task         string  `json:"task"`
	Calls        int64   `json:"calls"`
	Failures     int64   `json:"failures"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

type Summary struct {
	Recent []Record     `json:"recent"`
	Totals []TaskTotals `json:"totals"`
}

type IUsageRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, r Record) error
	GetByID(ctx context.Context, id string) (Record, error)
	ListRecent(ctx context.Context, task string, limit int) ([]Record, error)
	Totals(ctx context.Context, since time.Time) ([]TaskTotals, error)
}

type IUsageUsecase interface {
	Record(r Record)
	Summary(ctx context.Context, task string, limit int) (Summary, error)
}
