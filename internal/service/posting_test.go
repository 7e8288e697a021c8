package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/apperr"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/model/entity"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/sap"
)

// fakeERP is a test double for the ERP collaborator. Unset hooks fall
// back to permissive defaults so tests only configure what they assert.
type fakeERP struct {
	getRequest func(ctx context.Context, docNum string) (*sap.InventoryTransferRequest, error)
	getItem    func(ctx context.Context, itemCode string) (*sap.ItemClassification, error)
	getBin     func(ctx context.Context, binCode, warehouse string) (int, error)
	post       func(ctx context.Context, transfer *sap.StockTransfer) (*sap.PostResult, error)
}

func (f *fakeERP) GetTransferRequest(ctx context.Context, docNum string) (*sap.InventoryTransferRequest, error) {
	if f.getRequest != nil {
		return f.getRequest(ctx, docNum)
	}
	return nil, apperr.Validationf("transfer request %s not found", docNum)
}

func (f *fakeERP) GetItemClassification(ctx context.Context, itemCode string) (*sap.ItemClassification, error) {
	if f.getItem != nil {
		return f.getItem(ctx, itemCode)
	}
	return &sap.ItemClassification{ItemCode: itemCode}, nil
}

func (f *fakeERP) GetBinAbsEntry(ctx context.Context, binCode, warehouse string) (int, error) {
	if f.getBin != nil {
		return f.getBin(ctx, binCode, warehouse)
	}
	return 0, fmt.Errorf("bin lookup not configured")
}

func (f *fakeERP) PostStockTransfer(ctx context.Context, transfer *sap.StockTransfer) (*sap.PostResult, error) {
	if f.post != nil {
		return f.post(ctx, transfer)
	}
	return &sap.PostResult{DocEntry: 1, DocNum: 1}, nil
}

func builderTransfer(items ...entity.TransferItem) *entity.Transfer {
	return &entity.Transfer{
		ID:              "t-builder-001",
		DocNum:          "IT-202501010001",
		RequestNumber:   "1001",
		RequestDocEntry: 77,
		Status:          entity.TransferStatusSubmitted,
		FromWarehouse:   "WH01",
		ToWarehouse:     "WH02",
		Items:           items,
	}
}

func TestBuildStockTransfer_PlainItem(t *testing.T) {
	builder := NewPostingBuilder(&fakeERP{})
	transfer := builderTransfer(entity.TransferItem{
		ItemCode:       "ITEM-A",
		TransferredQty: 10,
	})
	mirror := map[string]entity.RequestLine{
		"ITEM-A": {RequestDocEntry: 77, LineNum: 2, ItemCode: "ITEM-A"},
	}

	payload, err := builder.BuildStockTransfer(context.Background(), transfer, mirror)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if payload.FromWarehouse != "WH01" || payload.ToWarehouse != "WH02" {
		t.Errorf("warehouses = %s -> %s", payload.FromWarehouse, payload.ToWarehouse)
	}
	if len(payload.StockTransferLines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(payload.StockTransferLines))
	}
	line := payload.StockTransferLines[0]
	if line.ItemCode != "ITEM-A" || line.Quantity != 10 {
		t.Errorf("line = %s qty %.1f", line.ItemCode, line.Quantity)
	}
	if line.BaseType != "InventoryTransferRequest" || line.BaseEntry != 77 || line.BaseLine != 2 {
		t.Errorf("base ref = %s/%d/%d", line.BaseType, line.BaseEntry, line.BaseLine)
	}
	if len(line.SerialNumbers) != 0 || len(line.BatchNumbers) != 0 {
		t.Errorf("plain item should have no serial/batch entries")
	}
}

func TestBuildStockTransfer_SerialItem(t *testing.T) {
	builder := NewPostingBuilder(&fakeERP{})
	transfer := builderTransfer(entity.TransferItem{
		ItemCode:       "ITEM-S",
		TransferredQty: 3,
		SerialRequired: true,
		SerialAllocations: []entity.SerialAllocation{
			{SerialNumber: "SN-001"},
			{SerialNumber: "SN-002"},
			{SerialNumber: "SN-003"},
		},
	})

	payload, err := builder.BuildStockTransfer(context.Background(), transfer, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	serials := payload.StockTransferLines[0].SerialNumbers
	if len(serials) != 3 {
		t.Fatalf("expected 3 serial entries, got %d", len(serials))
	}
	for _, s := range serials {
		if s.Quantity != 1 {
			t.Errorf("serial %s quantity = %.1f, want 1", s.InternalSerialNumber, s.Quantity)
		}
	}
}

func TestBuildStockTransfer_SerialCountMismatch(t *testing.T) {
	builder := NewPostingBuilder(&fakeERP{})
	transfer := builderTransfer(entity.TransferItem{
		ItemCode:       "ITEM-S",
		TransferredQty: 3,
		SerialRequired: true,
		SerialAllocations: []entity.SerialAllocation{
			{SerialNumber: "SN-001"},
			{SerialNumber: "SN-002"},
		},
	})

	_, err := builder.BuildStockTransfer(context.Background(), transfer, nil)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildStockTransfer_BatchItem(t *testing.T) {
	builder := NewPostingBuilder(&fakeERP{})
	transfer := builderTransfer(entity.TransferItem{
		ItemCode:       "ITEM-B",
		TransferredQty: 100,
		BatchRequired:  true,
		BatchAllocations: []entity.BatchAllocation{
			{BatchNumber: "B-01", Quantity: 60},
			{BatchNumber: "B-02", Quantity: 40},
		},
	})

	payload, err := builder.BuildStockTransfer(context.Background(), transfer, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	batches := payload.StockTransferLines[0].BatchNumbers
	if len(batches) != 2 {
		t.Fatalf("expected 2 batch entries, got %d", len(batches))
	}
	if batches[0].BatchNumber != "B-01" || batches[0].Quantity != 60 {
		t.Errorf("first batch = %s %.1f", batches[0].BatchNumber, batches[0].Quantity)
	}
}

func TestBuildStockTransfer_BatchFractionalSum(t *testing.T) {
	// 0.1 + 0.2 != 0.3 in float64; coverage must compare at storage precision.
	builder := NewPostingBuilder(&fakeERP{})
	transfer := builderTransfer(entity.TransferItem{
		ItemCode:       "ITEM-B",
		TransferredQty: 0.3,
		BatchRequired:  true,
		BatchAllocations: []entity.BatchAllocation{
			{BatchNumber: "B-01", Quantity: 0.1},
			{BatchNumber: "B-02", Quantity: 0.2},
		},
	})

	payload, err := builder.BuildStockTransfer(context.Background(), transfer, nil)
	if err != nil {
		t.Fatalf("fractional batch sum rejected: %v", err)
	}
	if len(payload.StockTransferLines[0].BatchNumbers) != 2 {
		t.Errorf("batch entries = %d, want 2", len(payload.StockTransferLines[0].BatchNumbers))
	}
}

func TestBuildStockTransfer_BatchSumMismatch(t *testing.T) {
	builder := NewPostingBuilder(&fakeERP{})
	transfer := builderTransfer(entity.TransferItem{
		ItemCode:       "ITEM-B",
		TransferredQty: 100,
		BatchRequired:  true,
		BatchAllocations: []entity.BatchAllocation{
			{BatchNumber: "B-01", Quantity: 60},
		},
	})

	_, err := builder.BuildStockTransfer(context.Background(), transfer, nil)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildStockTransfer_BinAllocations(t *testing.T) {
	bins := map[string]int{"A-01-01": 11, "B-02-02": 22}
	builder := NewPostingBuilder(&fakeERP{
		getBin: func(ctx context.Context, binCode, warehouse string) (int, error) {
			abs, ok := bins[binCode]
			if !ok {
				return 0, fmt.Errorf("unknown bin %s", binCode)
			}
			return abs, nil
		},
	})
	transfer := builderTransfer(entity.TransferItem{
		ItemCode:       "ITEM-A",
		TransferredQty: 5,
		FromBin:        "A-01-01",
		ToBin:          "B-02-02",
	})

	payload, err := builder.BuildStockTransfer(context.Background(), transfer, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	allocs := payload.StockTransferLines[0].BinAllocations
	if len(allocs) != 2 {
		t.Fatalf("expected 2 bin allocations, got %d", len(allocs))
	}
	if allocs[0].BinAbsEntry != 11 || allocs[0].BinActionType != sap.BinActionFromWarehouse {
		t.Errorf("from allocation = %+v", allocs[0])
	}
	if allocs[1].BinAbsEntry != 22 || allocs[1].BinActionType != sap.BinActionToWarehouse {
		t.Errorf("to allocation = %+v", allocs[1])
	}
}
