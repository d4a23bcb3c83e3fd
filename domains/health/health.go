package health

import (
	"context"
	"time"
)

type Component string

const (
	ComponentDatabase  Component = "database"
	ComponentCache     Component = "cache"
	ComponentPipelines Component = "pipelines"
)

type Status string

const (
	StatusOk       Status = "OK"
	StatusDegraded Status = "DEGRADED"
	StatusError    Status = "ERROR"
	StatusUnknown  Status = "UNKNOWN"
)

type HealthRecord struct {
	Component   Component `json:"component"`
	Status      Status    `json:"status"`
	LastMessage string    `json:"last_message"`
	LastChecked time.Time `json:"last_checked"`
}

// Report is the overall status: the worst status of its components.
type Report struct {
	Status     Status         `json:"status"`
	ServerID   string         `json:"server_id"`
	Version    string         `json:"version"`
	Uptime     string         `json:"uptime"`
	Components []HealthRecord `json:"components"`
}

// Checker reports the status of one component.
type Checker func(ctx context.Context) (Status, string)

type IHealthUsecase interface {
	GetStatus(ctx context.Context) Report
}
