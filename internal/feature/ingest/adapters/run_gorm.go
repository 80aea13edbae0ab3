package adapters

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"astock_backend/internal/feature/ingest/domain"
	"astock_backend/internal/feature/ingest/domain/entity"
	"astock_backend/internal/feature/ingest/usecase"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type runRepository struct {
	db *gorm.DB
}

var _ usecase.RunRepository = (*runRepository)(nil)

// NewRunRepository は ingest_run テーブルに実行レポートを保存するリポジトリを生成します。
func NewRunRepository(db *gorm.DB) *runRepository {
	return &runRepository{db: db}
}

// Save は実行レポートを挿入、または同じIDの行を上書きします。
func (r *runRepository) Save(ctx context.Context, report *entity.IngestRunReport) error {
	m, err := toRunModel(report)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (r *runRepository) Find(ctx context.Context, id string) (*entity.IngestRunReport, error) {
	var m IngestRunModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRunNotFound
		}
		return nil, err
	}
	return fromRunModel(m)
}

func toRunModel(r *entity.IngestRunReport) (IngestRunModel, error) {
	failures, err := json.Marshal(r.Failures)
	if err != nil {
		return IngestRunModel{}, fmt.Errorf("marshal failures: %w", err)
	}
	m := IngestRunModel{
		ID:                r.ID,
		Kind:              string(r.Kind),
		Year:              r.Params.Year,
		Quarter:           r.Params.Quarter,
		Attempted:         r.Counts.Attempted,
		SkippedExisting:   r.Counts.SkippedExisting,
		Succeeded:         r.Counts.Succeeded,
		Failed:            r.Counts.Failed,
		Failures:          failures,
		FailuresTruncated: r.FailuresTruncated,
		Status:            string(r.Status),
		Cancelled:         r.Cancelled,
		Error:             r.Error,
		EndedAt:           r.EndedAt,
	}
	if !r.StartedAt.IsZero() {
		started := r.StartedAt
		m.StartedAt = &started
	}
	return m, nil
}

func fromRunModel(m IngestRunModel) (*entity.IngestRunReport, error) {
	r := &entity.IngestRunReport{
		ID:     m.ID,
		Kind:   entity.RunKind(m.Kind),
		Params: entity.RunParams{Year: m.Year, Quarter: m.Quarter},
		Counts: entity.RunCounts{
			Attempted:       m.Attempted,
			SkippedExisting: m.SkippedExisting,
			Succeeded:       m.Succeeded,
			Failed:          m.Failed,
		},
		FailuresTruncated: m.FailuresTruncated,
		Status:            entity.RunStatus(m.Status),
		Cancelled:         m.Cancelled,
		Error:             m.Error,
		EndedAt:           m.EndedAt,
	}
	if m.StartedAt != nil {
		r.StartedAt = *m.StartedAt
	}
	if len(m.Failures) > 0 {
		if err := json.Unmarshal(m.Failures, &r.Failures); err != nil {
			return nil, fmt.Errorf("unmarshal failures: %w", err)
		}
	}
	return r, nil
}
