package adapters

import (
	"context"

	"gorm.io/gorm"

	"astock_backend/internal/feature/ingest/domain/entity"
	"astock_backend/internal/feature/ingest/usecase"
)

// quarterInsertBatch は四半期スライスの一括挿入で1文あたりに送る行数です。
const quarterInsertBatch = 500

type equityStore struct {
	db *gorm.DB
}

var _ usecase.Store = (*equityStore)(nil)

// NewEquityStore は gorm を使う Store を生成します。
func NewEquityStore(db *gorm.DB) *equityStore {
	return &equityStore{db: db}
}

func (s *equityStore) ListExistingSymbols(ctx context.Context) (map[string]struct{}, error) {
	var symbols []string
	if err := s.db.WithContext(ctx).Model(&EquityModel{}).Pluck("symbol", &symbols).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		out[sym] = struct{}{}
	}
	return out, nil
}

// InsertReferenceChunk は1チャンクを1トランザクションで挿入します。既存行は更新しません。
func (s *equityStore) InsertReferenceChunk(ctx context.Context, rows []entity.EquityReference) error {
	if len(rows) == 0 {
		return nil
	}
	ms := make([]EquityModel, 0, len(rows))
	for _, e := range rows {
		ms = append(ms, toEquityModel(e))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&ms).Error
	})
	return classifyWriteErr(err)
}

func (s *equityStore) BeginQuarterReplace(ctx context.Context, year, quarter int) (usecase.QuarterTxn, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, classifyWriteErr(tx.Error)
	}
	return &quarterTxn{tx: tx}, nil
}

// FindQuarter は (year, quarter) のスライスを銘柄コード順に返します。
func (s *equityStore) FindQuarter(ctx context.Context, year, quarter int) ([]entity.QuarterlyIncomeStatement, error) {
	var rows []IncomeStatementModel
	err := s.db.WithContext(ctx).
		Where("year = ? AND quarter = ?", year, quarter).
		Order("stock_code ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.QuarterlyIncomeStatement, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toEntity())
	}
	return out, nil
}

// quarterTxn はスライスの削除と挿入を1つのトランザクションで行います。
type quarterTxn struct {
	tx *gorm.DB
}

var _ usecase.QuarterTxn = (*quarterTxn)(nil)

func (t *quarterTxn) DeleteQuarter(ctx context.Context, year, quarter int) (int64, error) {
	res := t.tx.WithContext(ctx).
		Where("year = ? AND quarter = ?", year, quarter).
		Delete(&IncomeStatementModel{})
	if res.Error != nil {
		return 0, classifyWriteErr(res.Error)
	}
	return res.RowsAffected, nil
}

func (t *quarterTxn) InsertQuarterRows(ctx context.Context, rows []entity.QuarterlyIncomeStatement) error {
	if len(rows) == 0 {
		return nil
	}
	ms := make([]IncomeStatementModel, 0, len(rows))
	for _, e := range rows {
		ms = append(ms, toIncomeModel(e))
	}
	return classifyWriteErr(t.tx.WithContext(ctx).CreateInBatches(&ms, quarterInsertBatch).Error)
}

func (t *quarterTxn) Commit() error {
	return classifyWriteErr(t.tx.Commit().Error)
}

func (t *quarterTxn) Rollback() error {
	return t.tx.Rollback().Error
}
