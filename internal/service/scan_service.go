package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/apperr"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/model/entity"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/repository"
	"go.uber.org/zap"
)

// ScanService 扫码暂存服务
// 暂存是落明细之前的临时缓冲：一条记录对应一次物理包/序列扫码，
// 落明细时整组被原子取走。
type ScanService struct {
	scanRepo     *repository.ScanRepository
	transferRepo *repository.TransferRepository
	logger       *zap.Logger
}

// NewScanService 创建扫码暂存服务
func NewScanService(scanRepo *repository.ScanRepository, transferRepo *repository.TransferRepository, logger *zap.Logger) *ScanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanService{scanRepo: scanRepo, transferRepo: transferRepo, logger: logger}
}

// StageScanRequest 扫码暂存请求
type StageScanRequest struct {
	ItemCode    string  `json:"item_code" binding:"required"`
	PackKey     string  `json:"pack_key" binding:"required"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	BatchNumber string  `json:"batch_number"`
	SerialNo    string  `json:"serial_number"`
	BinLocation string  `json:"bin_location"`
	PackRef     string  `json:"external_pack_ref"` // 如GRN号
}

// Stage 写入一条扫码暂存
// 键为(单据,物料,包)，重复扫同一包是覆盖而不是新增。
func (s *ScanService) Stage(ctx context.Context, transferID, userID string, req *StageScanRequest) (*entity.ScanStagingEntry, error) {
	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != entity.TransferStatusDraft {
		return nil, apperr.NewStateError("stage scan", transfer.Status, entity.TransferStatusDraft)
	}

	now := time.Now()
	scan := &entity.ScanStagingEntry{
		ID:          uuid.New().String()[:32],
		TransferID:  transfer.ID,
		ItemCode:    req.ItemCode,
		PackKey:     req.PackKey,
		Quantity:    req.Quantity,
		BatchNumber: req.BatchNumber,
		SerialNo:    req.SerialNo,
		BinLocation: req.BinLocation,
		PackRef:     req.PackRef,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.scanRepo.Upsert(ctx, scan); err != nil {
		return nil, err
	}
	return scan, nil
}

// List 查询暂存记录
func (s *ScanService) List(ctx context.Context, transferID, itemCode string) ([]entity.ScanStagingEntry, error) {
	return s.scanRepo.List(ctx, transferID, itemCode)
}

// Consume 原子取走暂存记录
// 没有暂存时返回空集且不删除任何行。
func (s *ScanService) Consume(ctx context.Context, transferID, itemCode string) ([]entity.ScanStagingEntry, error) {
	return s.scanRepo.Consume(ctx, transferID, itemCode)
}
