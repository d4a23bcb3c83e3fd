package usage

import (
	"context"
	"errors"
	"time"

	domainUsage "github.com/AzielCF/az-infer/domains/usage"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"gorm.io/gorm"
)

// usageModel es el modelo de persistencia para GORM.
type usageModel struct {
	ID        string `gorm:"primaryKey"`
	Task      string `gorm:"index;not null"`
	Provider  string
	Model     string
	LatencyMs int64
	Success   bool      `gorm:"not null;default:true"`
	Error     string    `gorm:"column:error_message"`
	CreatedAt time.Time `gorm:"index"`
}

func (usageModel) TableName() string {
	return "pipeline_usage"
}

type UsageGormRepository struct {
	db *gorm.DB
}

func NewUsageGormRepository(db *gorm.DB) *UsageGormRepository {
	return &UsageGormRepository{db: db}
}

// Init inicializa el esquema usando AutoMigrate.
func (r *UsageGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&usageModel{})
}

func (r *UsageGormRepository) Create(ctx context.Context, rec domainUsage.Record) error {
	model := toUsageModel(rec)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *UsageGormRepository) GetByID(ctx context.Context, id string) (domainUsage.Record, error) {
	var model usageModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainUsage.Record{}, pkgError.NotFoundError("usage record not found")
		}
		return domainUsage.Record{}, err
	}
	return fromUsageModel(model), nil
}

// ListRecent retorna los últimos registros, opcionalmente filtrados por task.
func (r *UsageGormRepository) ListRecent(ctx context.Context, task string, limit int) ([]domainUsage.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if task != "" {
		q = q.Where("task = ?", task)
	}

	var models []usageModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]domainUsage.Record, len(models))
	for i, m := range models {
		result[i] = fromUsageModel(m)
	}
	return result, nil
}

// Totals agrupa por task desde since (zero = todo).
func (r *UsageGormRepository) Totals(ctx context.Context, since time.Time) ([]domainUsage.TaskTotals, error) {
	var rows []struct {
		Task         string
		Calls        int64
		Failures     int64
		AvgLatencyMs float64
	}
	q := r.db.WithContext(ctx).Model(&usageModel{}).
		Select("task, COUNT(*) AS calls, SUM(CASE WHEN success THEN 0 ELSE 1 END) AS failures, AVG(latency_ms) AS avg_latency_ms").
		Group("task").
		Order("task ASC")
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]domainUsage.TaskTotals, len(rows))
	for i, row := range rows {
		result[i] = domainUsage.TaskTotals{
			Task:         row.Task,
			Calls:        row.Calls,
			Failures:     row.Failures,
			AvgLatencyMs: row.AvgLatencyMs,
		}
	}
	return result, nil
}

// Mappers manuales para mantener la pureza del dominio.
func toUsageModel(r domainUsage.Record) usageModel {
	return usageModel{
		ID:        r.ID,
		Task:      r.Task,
		Provider:  r.Provider,
		Model:     r.Model,
		LatencyMs: r.LatencyMs,
		Success:   r.Success,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
	}
}

func fromUsageModel(m usageModel) domainUsage.Record {
	return domainUsage.Record{
		ID:        m.ID,
		Task:      m.Task,
		Provider:  m.Provider,
		Model:     m.Model,
		LatencyMs: m.LatencyMs,
		Success:   m.Success,
		Error:     m.Error,
		CreatedAt: m.CreatedAt,
	}
}
