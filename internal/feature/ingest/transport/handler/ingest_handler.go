// Package handler はingestフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"astock_backend/internal/api"
	"astock_backend/internal/feature/ingest/domain"
	"astock_backend/internal/feature/ingest/domain/entity"
	"astock_backend/internal/feature/ingest/transport/http/dto"
)

// IngestUsecase はインジェスト実行の起動・参照・取消のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type IngestUsecase interface {
	RunReferenceSync(ctx context.Context) (*entity.IngestRunReport, error)
	RunQuarterSync(ctx context.Context, year, quarter int) (*entity.IngestRunReport, error)
	StartReferenceSync(ctx context.Context) (*entity.IngestRunReport, error)
	StartQuarterSync(ctx context.Context, year, quarter int) (*entity.IngestRunReport, error)
	GetRun(ctx context.Context, id string) (*entity.IngestRunReport, error)
	CancelRun(ctx context.Context, id string) error
}

// IngestHandler はインジェストのHTTPリクエストを処理します。
type IngestHandler struct {
	uc IngestUsecase
}

// NewIngestHandler は指定されたusecaseでIngestHandlerの新しいインスタンスを生成します。
func NewIngestHandler(uc IngestUsecase) *IngestHandler {
	return &IngestHandler{uc: uc}
}

// ReferenceSync は参照データ同期を実行します。
//
// エンドポイント例:
// POST /referenceSync
// POST /referenceSync?async=true
func (h *IngestHandler) ReferenceSync(c *gin.Context) {
	if isAsync(c) {
		report, err := h.uc.StartReferenceSync(c.Request.Context())
		h.respondAccepted(c, report, err)
		return
	}
	report, err := h.uc.RunReferenceSync(c.Request.Context())
	h.respondRun(c, report, err)
}

// QuarterSync は四半期損益計算書の同期を実行します。
//
// エンドポイント例:
// POST /quarterSync?year=2024&quarter=2
// POST /quarterSync?year=2024&quarter=2&async=true
func (h *IngestHandler) QuarterSync(c *gin.Context) {
	year, err1 := strconv.Atoi(c.Query("year"))
	quarter, err2 := strconv.Atoi(c.Query("quarter"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "year and quarter must be integers"})
		return
	}

	if isAsync(c) {
		report, err := h.uc.StartQuarterSync(c.Request.Context(), year, quarter)
		h.respondAccepted(c, report, err)
		return
	}
	report, err := h.uc.RunQuarterSync(c.Request.Context(), year, quarter)
	h.respondRun(c, report, err)
}

// GetRun は実行レポートを返します。
//
// エンドポイント例:
// GET /ingestRuns/:id
func (h *IngestHandler) GetRun(c *gin.Context) {
	report, err := h.uc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), api.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.NewRunReport(report))
}

// CancelRun は実行中の実行にキャンセルを要求します。終了済みの実行に対しては何もしません。
//
// エンドポイント例:
// DELETE /ingestRuns/:id
func (h *IngestHandler) CancelRun(c *gin.Context) {
	id := c.Param("id")
	if err := h.uc.CancelRun(c.Request.Context(), id); err != nil {
		c.JSON(statusFor(err), api.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, dto.RunAccepted{RunID: id, Status: "cancel_requested"})
}

func (h *IngestHandler) respondAccepted(c *gin.Context, report *entity.IngestRunReport, err error) {
	if err != nil {
		c.JSON(statusFor(err), api.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, dto.RunAccepted{RunID: report.ID, Status: string(report.Status)})
}

// respondRun は終了したレポートを返します。実行が開始されなかった場合はエラーのみを返します。
func (h *IngestHandler) respondRun(c *gin.Context, report *entity.IngestRunReport, err error) {
	if report == nil {
		if err == nil {
			err = errors.New("run produced no report")
		}
		c.JSON(statusFor(err), api.ErrorResponse{Error: err.Error()})
		return
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		slog.Warn("ingest run aborted", "run_id", report.ID, "status", status, "error", err)
	}
	c.JSON(status, dto.NewRunReport(report))
}

// statusFor はエラー種別をHTTPステータスに対応付けます。
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRunConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrExternalSnapshotFailed), errors.Is(err, domain.ErrExternalUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func isAsync(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("async"))
	return v
}
