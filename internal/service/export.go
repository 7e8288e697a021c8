package service

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var transferExportHeaders = []string{
	"Item Code", "Item Name", "Requested Qty", "Transferred Qty",
	"UoM", "Serial Managed", "Batch Managed", "From Bin", "To Bin", "QC Status",
}

// Export 导出调拨单明细为Excel
func (s *TransferService) Export(ctx context.Context, transferID string) (*excelize.File, string, error) {
	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return nil, "", fmt.Errorf("transfer not found: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Transfer"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	// 单据头
	f.SetCellValue(sheet, "A1", "Transfer")
	f.SetCellValue(sheet, "B1", transfer.DocNum)
	f.SetCellValue(sheet, "A2", "Request")
	f.SetCellValue(sheet, "B2", transfer.RequestNumber)
	f.SetCellValue(sheet, "A3", "Status")
	f.SetCellValue(sheet, "B3", transfer.Status)
	f.SetCellValue(sheet, "A4", "Warehouses")
	f.SetCellValue(sheet, "B4", fmt.Sprintf("%s -> %s", transfer.FromWarehouse, transfer.ToWarehouse))

	headerRow := 6
	for i, h := range transferExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s%d", col, headerRow)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for i, item := range transfer.Items {
		row := headerRow + 1 + i
		values := []interface{}{
			item.ItemCode, item.ItemName, item.RequestedQty, item.TransferredQty,
			item.UoM, item.SerialRequired, item.BatchRequired,
			item.FromBin, item.ToBin, item.QCStatus,
		}
		for j, v := range values {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v)
		}
	}

	filename := fmt.Sprintf("transfer_%s.xlsx", transfer.DocNum)
	return f, filename, nil
}
