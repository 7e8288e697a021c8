package service

import (
	"context"
	"fmt"
	"math"

	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/apperr"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/model/entity"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/sap"
)

// 过账行引用申请单的基础单据类型
const baseTypeTransferRequest = "InventoryTransferRequest"

// 数量比较容差：数量列为decimal(12,4)，最小刻度0.0001，
// float64累加误差远小于半个刻度，比较一律用容差而不是==
const qtyEpsilon = 0.00005

// qtyEqual 按存储精度判断两个数量是否相等
func qtyEqual(a, b float64) bool {
	return math.Abs(a-b) <= qtyEpsilon
}

// PostingBuilder 过账报文构造器
// 纯构造：同样的单据和镜像行产出同样的报文；唯一的外部调用是库位解析。
type PostingBuilder struct {
	erp ERPClient
}

func NewPostingBuilder(erp ERPClient) *PostingBuilder {
	return &PostingBuilder{erp: erp}
}

// BuildStockTransfer 把本地调拨单编译成ERP过账报文
// 每行编码规则：
//   - 序列号管理：每个单件一条SerialNumbers子项，数量固定1，合计须等于行数量
//   - 批次管理：每个(批次,数量)一条BatchNumbers子项，合计须等于行数量
//   - 都不管理：单行数量，无子项
//
// 库位通过协作方解析成AbsEntry，显式标注from/to方向。
// mirrorLines按物料索引，用于BaseLine回链申请单行。
func (b *PostingBuilder) BuildStockTransfer(ctx context.Context, transfer *entity.Transfer, mirrorLines map[string]entity.RequestLine) (*sap.StockTransfer, error) {
	payload := &sap.StockTransfer{
		Comments:      fmt.Sprintf("WMS transfer %s (request %s)", transfer.DocNum, transfer.RequestNumber),
		FromWarehouse: transfer.FromWarehouse,
		ToWarehouse:   transfer.ToWarehouse,
	}

	for i, item := range transfer.Items {
		line := sap.StockTransferLine{
			LineNum:           i,
			ItemCode:          item.ItemCode,
			Quantity:          item.TransferredQty,
			FromWarehouseCode: transfer.FromWarehouse,
			WarehouseCode:     transfer.ToWarehouse,
		}

		if mirror, ok := mirrorLines[item.ItemCode]; ok {
			line.BaseType = baseTypeTransferRequest
			line.BaseEntry = transfer.RequestDocEntry
			line.BaseLine = mirror.LineNum
		}

		switch {
		case item.SerialRequired:
			var total float64
			for _, alloc := range item.SerialAllocations {
				line.SerialNumbers = append(line.SerialNumbers, sap.SerialNumberEntry{
					InternalSerialNumber: alloc.SerialNumber,
					Quantity:             1,
				})
				total++
			}
			if !qtyEqual(total, item.TransferredQty) {
				return nil, apperr.Validationf(
					"item %s: serial allocations (%.4f) do not cover transferred quantity (%.4f)",
					item.ItemCode, total, item.TransferredQty)
			}

		case item.BatchRequired:
			var total float64
			for _, alloc := range item.BatchAllocations {
				line.BatchNumbers = append(line.BatchNumbers, sap.BatchNumberEntry{
					BatchNumber: alloc.BatchNumber,
					Quantity:    alloc.Quantity,
				})
				total += alloc.Quantity
			}
			if !qtyEqual(total, item.TransferredQty) {
				return nil, apperr.Validationf(
					"item %s: batch allocations (%.4f) do not cover transferred quantity (%.4f)",
					item.ItemCode, total, item.TransferredQty)
			}
		}

		if item.FromBin != "" {
			abs, err := b.erp.GetBinAbsEntry(ctx, item.FromBin, transfer.FromWarehouse)
			if err != nil {
				return nil, fmt.Errorf("resolve from-bin %s: %w", item.FromBin, err)
			}
			line.BinAllocations = append(line.BinAllocations, sap.BinAllocation{
				BinAbsEntry:    abs,
				Quantity:       item.TransferredQty,
				BinActionType:  sap.BinActionFromWarehouse,
				BaseLineNumber: line.LineNum,
			})
		}
		if item.ToBin != "" {
			abs, err := b.erp.GetBinAbsEntry(ctx, item.ToBin, transfer.ToWarehouse)
			if err != nil {
				return nil, fmt.Errorf("resolve to-bin %s: %w", item.ToBin, err)
			}
			line.BinAllocations = append(line.BinAllocations, sap.BinAllocation{
				BinAbsEntry:    abs,
				Quantity:       item.TransferredQty,
				BinActionType:  sap.BinActionToWarehouse,
				BaseLineNumber: line.LineNum,
			})
		}

		payload.StockTransferLines = append(payload.StockTransferLines, line)
	}

	return payload, nil
}
