package service

import (
	"context"

	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/sap"
)

// ERPClient 业务核心依赖的ERP协作方契约
// 传输、会话、登录握手都是实现方的事；核心只消费类型化的出入参。
// *sap.Client 和 *sap.CachedClient 都满足该接口。
type ERPClient interface {
	// GetTransferRequest 按单号取调拨申请单及其行
	GetTransferRequest(ctx context.Context, docNum string) (*sap.InventoryTransferRequest, error)

	// GetItemClassification 取物料的批次/序列号管理标记
	GetItemClassification(ctx context.Context, itemCode string) (*sap.ItemClassification, error)

	// GetBinAbsEntry 解析库位编码为ERP内部标识
	GetBinAbsEntry(ctx context.Context, binCode, warehouse string) (int, error)

	// PostStockTransfer 提交调拨过账，单次尝试，无重试
	PostStockTransfer(ctx context.Context, transfer *sap.StockTransfer) (*sap.PostResult, error)
}

// PostingArchiver 过账报文归档，尽力而为，不影响主流程
type PostingArchiver interface {
	ArchivePosting(ctx context.Context, transferID string, payload *sap.StockTransfer, result *sap.PostResult) error
}
