package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/apperr"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/model/entity"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/repository"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/sap"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/testutil"
	"gorm.io/gorm"
)

func newTestServices(t *testing.T, erp ERPClient) (*TransferService, *ScanService, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewTransferService(db, repos.Transfer, repos.Mirror, repos.Scan, erp, nil, nil)
	scanSvc := NewScanService(repos.Scan, repos.Transfer, nil)
	return svc, scanSvc, db
}

func seedTransfer(t *testing.T, db *gorm.DB, requestDocEntry int, status, createdBy string) *entity.Transfer {
	t.Helper()
	now := time.Now()
	transfer := &entity.Transfer{
		ID:              uuid.New().String()[:32],
		DocNum:          "IT-TEST-" + uuid.New().String()[:8],
		RequestNumber:   fmt.Sprintf("%d", requestDocEntry),
		RequestDocEntry: requestDocEntry,
		Status:          status,
		FromWarehouse:   "WH01",
		ToWarehouse:     "WH02",
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := db.Create(transfer).Error; err != nil {
		t.Fatalf("seed transfer: %v", err)
	}
	return transfer
}

func openRequest(docEntry int, lines ...sap.TransferRequestLine) *sap.InventoryTransferRequest {
	return &sap.InventoryTransferRequest{
		DocEntry:           docEntry,
		DocNum:             docEntry,
		DocumentStatus:     sap.DocStatusOpen,
		FromWarehouse:      "WH01",
		ToWarehouse:        "WH02",
		StockTransferLines: lines,
	}
}

func openLine(lineNum int, itemCode string, qty, open float64) sap.TransferRequestLine {
	return sap.TransferRequestLine{
		LineNum:               lineNum,
		ItemCode:              itemCode,
		Quantity:              qty,
		RemainingOpenQuantity: open,
		LineStatus:            sap.DocStatusOpen,
		UoMCode:               "pcs",
		FromWarehouseCode:     "WH01",
		WarehouseCode:         "WH02",
	}
}

func TestCreate_SnapshotsOpenLines(t *testing.T) {
	closedLine := openLine(2, "ITEM-C", 5, 0)
	closedLine.LineStatus = sap.DocStatusClosed

	erp := &fakeERP{
		getRequest: func(ctx context.Context, docNum string) (*sap.InventoryTransferRequest, error) {
			return openRequest(300, openLine(0, "ITEM-A", 100, 100), openLine(1, "ITEM-B", 50, 30), closedLine), nil
		},
	}
	svc, _, db := newTestServices(t, erp)

	transfer, err := svc.Create(context.Background(), "user-1", &CreateTransferRequest{RequestNumber: "300"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if transfer.Status != entity.TransferStatusDraft {
		t.Errorf("status = %s, want draft", transfer.Status)
	}
	if transfer.RequestDocEntry != 300 {
		t.Errorf("request doc entry = %d", transfer.RequestDocEntry)
	}

	// Only open lines are mirrored; the snapshot keeps the ERP-side open quantity.
	var mirrored []entity.RequestLine
	if err := db.Where("request_doc_entry = ?", 300).Order("line_num").Find(&mirrored).Error; err != nil {
		t.Fatalf("load mirror: %v", err)
	}
	if len(mirrored) != 2 {
		t.Fatalf("mirrored %d lines, want 2", len(mirrored))
	}
	if mirrored[1].IngestedOpenQty != 30 || mirrored[1].OpenQty != 30 {
		t.Errorf("line B snapshot = %.1f/%.1f, want 30/30", mirrored[1].IngestedOpenQty, mirrored[1].OpenQty)
	}
}

func TestCreate_SecondDocumentReusesSnapshot(t *testing.T) {
	erp := &fakeERP{
		getRequest: func(ctx context.Context, docNum string) (*sap.InventoryTransferRequest, error) {
			return openRequest(301, openLine(0, "ITEM-A", 100, 100)), nil
		},
	}
	svc, _, db := newTestServices(t, erp)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "user-1", &CreateTransferRequest{RequestNumber: "301"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	// Drain some quantity so the stored snapshot diverges from the ERP payload.
	db.Model(&entity.RequestLine{}).Where("request_doc_entry = ?", 301).Update("open_qty", 40)

	if _, err := svc.Create(ctx, "user-2", &CreateTransferRequest{RequestNumber: "301"}); err != nil {
		t.Fatalf("second create: %v", err)
	}

	var line entity.RequestLine
	db.Where("request_doc_entry = ?", 301).First(&line)
	if line.OpenQty != 40 {
		t.Errorf("second create overwrote snapshot: open_qty = %.1f, want 40", line.OpenQty)
	}
}

func TestCreate_ClosedRequestRejected(t *testing.T) {
	erp := &fakeERP{
		getRequest: func(ctx context.Context, docNum string) (*sap.InventoryTransferRequest, error) {
			req := openRequest(302, openLine(0, "ITEM-A", 10, 10))
			req.DocumentStatus = sap.DocStatusClosed
			return req, nil
		},
	}
	svc, _, _ := newTestServices(t, erp)

	_, err := svc.Create(context.Background(), "user-1", &CreateTransferRequest{RequestNumber: "302"})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddItem_EnforcesRemainingAcrossDocuments(t *testing.T) {
	svc, _, db := newTestServices(t, &fakeERP{})
	ctx := context.Background()

	testutil.SeedRequestLine(t, db, 400, 0, "ITEM-A", 60, 60)
	first := seedTransfer(t, db, 400, entity.TransferStatusDraft, "user-1")
	second := seedTransfer(t, db, 400, entity.TransferStatusDraft, "user-2")

	if _, err := svc.AddItem(ctx, first.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 50}); err != nil {
		t.Fatalf("first add: %v", err)
	}

	// 50 of 60 already drawn by the first document.
	_, err := svc.AddItem(ctx, second.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 20})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for over-draw, got %v", err)
	}

	if _, err := svc.AddItem(ctx, second.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 10}); err != nil {
		t.Fatalf("remainder add: %v", err)
	}

	var line entity.RequestLine
	db.Where("request_doc_entry = ?", 400).First(&line)
	if line.OpenQty != 0 || line.LineStatus != entity.RequestLineStatusClosed {
		t.Errorf("line after full draw = %.1f/%s, want 0/closed", line.OpenQty, line.LineStatus)
	}
}

func TestAddItem_ExactRemainderAfterFractionalDraws(t *testing.T) {
	svc, _, db := newTestServices(t, &fakeERP{})
	ctx := context.Background()

	testutil.SeedRequestLine(t, db, 414, 0, "ITEM-A", 1, 1)
	first := seedTransfer(t, db, 414, entity.TransferStatusDraft, "user-1")
	second := seedTransfer(t, db, 414, entity.TransferStatusDraft, "user-1")
	third := seedTransfer(t, db, 414, entity.TransferStatusDraft, "user-1")

	if _, err := svc.AddItem(ctx, first.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 0.1}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := svc.AddItem(ctx, second.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 0.2}); err != nil {
		t.Fatalf("second add: %v", err)
	}

	// 0.1 + 0.2 accumulates float error; drawing the exact remainder 0.7
	// must still pass the remaining check.
	if _, err := svc.AddItem(ctx, third.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 0.7}); err != nil {
		t.Fatalf("exact remainder rejected: %v", err)
	}
}

func TestAddItem_CopiesMirrorLineDetails(t *testing.T) {
	svc, _, db := newTestServices(t, &fakeERP{})
	ctx := context.Background()

	testutil.SeedRequestLine(t, db, 415, 0, "ITEM-A", 100, 100)
	transfer := seedTransfer(t, db, 415, entity.TransferStatusDraft, "user-1")

	item, err := svc.AddItem(ctx, transfer.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 5})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if item.ItemName != "Item ITEM-A" || item.UoM != "pcs" {
		t.Errorf("mirror details = %q/%q, want \"Item ITEM-A\"/\"pcs\"", item.ItemName, item.UoM)
	}
}

func TestAddItem_DuplicateItemRejected(t *testing.T) {
	svc, _, db := newTestServices(t, &fakeERP{})
	ctx := context.Background()

	testutil.SeedRequestLine(t, db, 401, 0, "ITEM-A", 100, 100)
	transfer := seedTransfer(t, db, 401, entity.TransferStatusDraft, "user-1")

	if _, err := svc.AddItem(ctx, transfer.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 10}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, err := svc.AddItem(ctx, transfer.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 10})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for duplicate item, got %v", err)
	}
}

func TestAddItem_UnknownItemRejected(t *testing.T) {
	svc, _, db := newTestServices(t, &fakeERP{})
	testutil.SeedRequestLine(t, db, 402, 0, "ITEM-A", 100, 100)
	transfer := seedTransfer(t, db, 402, entity.TransferStatusDraft, "user-1")

	_, err := svc.AddItem(context.Background(), transfer.ID, &AddItemRequest{ItemCode: "ITEM-X", Quantity: 5})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for unknown item, got %v", err)
	}
}

func TestAddItem_ConsumesStagedScans(t *testing.T) {
	erp := &fakeERP{
		getItem: func(ctx context.Context, itemCode string) (*sap.ItemClassification, error) {
			return &sap.ItemClassification{ItemCode: itemCode, BatchRequired: true}, nil
		},
	}
	svc, scanSvc, db := newTestServices(t, erp)
	ctx := context.Background()

	testutil.SeedRequestLine(t, db, 403, 0, "ITEM-B", 100, 100)
	transfer := seedTransfer(t, db, 403, entity.TransferStatusDraft, "user-1")

	for _, s := range []StageScanRequest{
		{ItemCode: "ITEM-B", PackKey: "PK-1", Quantity: 25, BatchNumber: "B-01", BinLocation: "A-01"},
		{ItemCode: "ITEM-B", PackKey: "PK-2", Quantity: 15, BatchNumber: "B-01", BinLocation: "A-01"},
	} {
		req := s
		if _, err := scanSvc.Stage(ctx, transfer.ID, "user-1", &req); err != nil {
			t.Fatalf("stage %s: %v", s.PackKey, err)
		}
	}

	item, err := svc.AddItem(ctx, transfer.ID, &AddItemRequest{ItemCode: "ITEM-B", Quantity: 40})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	// Staged packs with the same (batch, bin) merge into one allocation.
	if len(item.BatchAllocations) != 1 {
		t.Fatalf("batch allocations = %d, want 1", len(item.BatchAllocations))
	}
	if item.BatchAllocations[0].BatchNumber != "B-01" || item.BatchAllocations[0].Quantity != 40 {
		t.Errorf("allocation = %s %.1f", item.BatchAllocations[0].BatchNumber, item.BatchAllocations[0].Quantity)
	}

	// The staging buffer is emptied by the take.
	scans, _ := scanSvc.List(ctx, transfer.ID, "ITEM-B")
	if len(scans) != 0 {
		t.Errorf("staging still holds %d entries", len(scans))
	}
}

func TestAddItem_PackRefConsumedOnce(t *testing.T) {
	svc, _, db := newTestServices(t, &fakeERP{})
	ctx := context.Background()

	testutil.SeedRequestLine(t, db, 404, 0, "ITEM-A", 100, 100)
	testutil.SeedRequestLine(t, db, 404, 1, "ITEM-B", 100, 100)
	transfer := seedTransfer(t, db, 404, entity.TransferStatusDraft, "user-1")

	if _, err := svc.AddItem(ctx, transfer.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 10, PackRef: "GRN-7"}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, err := svc.AddItem(ctx, transfer.ID, &AddItemRequest{ItemCode: "ITEM-B", Quantity: 10, PackRef: "GRN-7"})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for reused pack ref, got %v", err)
	}
}

func TestSubmit_RequiresItems(t *testing.T) {
	svc, _, db := newTestServices(t, &fakeERP{})
	transfer := seedTransfer(t, db, 405, entity.TransferStatusDraft, "user-1")

	_, err := svc.Submit(context.Background(), transfer.ID)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitAndApprove_PostsToERP(t *testing.T) {
	posted := false
	erp := &fakeERP{
		post: func(ctx context.Context, st *sap.StockTransfer) (*sap.PostResult, error) {
			posted = true
			if len(st.StockTransferLines) != 1 {
				t.Errorf("payload lines = %d, want 1", len(st.StockTransferLines))
			}
			return &sap.PostResult{DocEntry: 501, DocNum: 9001}, nil
		},
	}
	svc, _, db := newTestServices(t, erp)
	ctx := context.Background()

	testutil.SeedRequestLine(t, db, 406, 0, "ITEM-A", 100, 100)
	transfer := seedTransfer(t, db, 406, entity.TransferStatusDraft, "user-1")
	if _, err := svc.AddItem(ctx, transfer.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 30}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := svc.Submit(ctx, transfer.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	approved, err := svc.QCApprove(ctx, transfer.ID, "qc-user", "looks good")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !posted {
		t.Fatal("ERP posting was not invoked")
	}
	if approved.Status != entity.TransferStatusPosted {
		t.Errorf("status = %s, want posted", approved.Status)
	}
	if approved.ExternalDocNum != "9001" || approved.ExternalDocEntry != 501 {
		t.Errorf("external ref = %s/%d", approved.ExternalDocNum, approved.ExternalDocEntry)
	}
	if approved.ApproverID != "qc-user" || approved.ApprovedAt == nil {
		t.Errorf("approver not recorded: %s / %v", approved.ApproverID, approved.ApprovedAt)
	}
	for _, item := range approved.Items {
		if item.QCStatus != entity.QCStatusApproved {
			t.Errorf("item %s qc_status = %s", item.ItemCode, item.QCStatus)
		}
	}
}

func TestQCApprove_PostFailureRollsBack(t *testing.T) {
	erp := &fakeERP{
		post: func(ctx context.Context, st *sap.StockTransfer) (*sap.PostResult, error) {
			return nil, &apperr.ExternalUnavailable{Op: "post stock transfer", Err: fmt.Errorf("connection refused")}
		},
	}
	svc, _, db := newTestServices(t, erp)
	ctx := context.Background()

	testutil.SeedRequestLine(t, db, 407, 0, "ITEM-A", 100, 100)
	transfer := seedTransfer(t, db, 407, entity.TransferStatusDraft, "user-1")
	if _, err := svc.AddItem(ctx, transfer.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 10}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := svc.Submit(ctx, transfer.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err := svc.QCApprove(ctx, transfer.ID, "qc-user", "")
	if !apperr.IsExternalUnavailable(err) {
		t.Fatalf("expected external unavailable, got %v", err)
	}

	// Posting failed inside the transaction, so nothing sticks.
	reloaded, _ := svc.Get(ctx, transfer.ID)
	if reloaded.Status != entity.TransferStatusSubmitted {
		t.Errorf("status after failed post = %s, want submitted", reloaded.Status)
	}
	if reloaded.ApproverID != "" {
		t.Errorf("approver recorded despite rollback: %s", reloaded.ApproverID)
	}
	for _, item := range reloaded.Items {
		if item.QCStatus != entity.QCStatusPending {
			t.Errorf("item %s qc_status = %s, want pending", item.ItemCode, item.QCStatus)
		}
	}
}

func TestQCApprove_WrongStateRejected(t *testing.T) {
	svc, _, db := newTestServices(t, &fakeERP{})
	transfer := seedTransfer(t, db, 408, entity.TransferStatusDraft, "user-1")

	_, err := svc.QCApprove(context.Background(), transfer.ID, "qc-user", "")
	if !apperr.IsState(err) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestQCReject_RequiresNotes(t *testing.T) {
	svc, _, db := newTestServices(t, &fakeERP{})
	transfer := seedTransfer(t, db, 409, entity.TransferStatusSubmitted, "user-1")

	_, err := svc.QCReject(context.Background(), transfer.ID, "qc-user", "")
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestQCRejectThenReopen(t *testing.T) {
	svc, _, db := newTestServices(t, &fakeERP{})
	ctx := context.Background()

	testutil.SeedRequestLine(t, db, 410, 0, "ITEM-A", 100, 100)
	transfer := seedTransfer(t, db, 410, entity.TransferStatusDraft, "user-1")
	if _, err := svc.AddItem(ctx, transfer.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 10}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := svc.Submit(ctx, transfer.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rejected, err := svc.QCReject(ctx, transfer.ID, "qc-user", "damaged packaging")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != entity.TransferStatusRejected || rejected.ApprovalNotes != "damaged packaging" {
		t.Errorf("after reject = %s / %q", rejected.Status, rejected.ApprovalNotes)
	}
	for _, item := range rejected.Items {
		if item.QCStatus != entity.QCStatusRejected {
			t.Errorf("item %s qc_status = %s", item.ItemCode, item.QCStatus)
		}
	}

	reopened, err := svc.Reopen(ctx, transfer.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Status != entity.TransferStatusDraft {
		t.Errorf("after reopen = %s, want draft", reopened.Status)
	}
	if reopened.ApproverID != "" || reopened.ApprovalNotes != "" {
		t.Errorf("approval not cleared: %s / %q", reopened.ApproverID, reopened.ApprovalNotes)
	}
	for _, item := range reopened.Items {
		if item.QCStatus != entity.QCStatusPending {
			t.Errorf("item %s qc_status = %s, want pending", item.ItemCode, item.QCStatus)
		}
	}

	// Reopen is only valid from rejected.
	if _, err := svc.Reopen(ctx, transfer.ID); !apperr.IsState(err) {
		t.Errorf("expected state error on second reopen, got %v", err)
	}
}

func TestDelete_OwnerOnlyAndReleasesQuantity(t *testing.T) {
	svc, _, db := newTestServices(t, &fakeERP{})
	ctx := context.Background()

	testutil.SeedRequestLine(t, db, 411, 0, "ITEM-A", 100, 100)
	transfer := seedTransfer(t, db, 411, entity.TransferStatusDraft, "user-1")
	if _, err := svc.AddItem(ctx, transfer.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 60}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	if err := svc.Delete(ctx, transfer.ID, "someone-else"); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for non-owner, got %v", err)
	}

	if err := svc.Delete(ctx, transfer.ID, "user-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Deleting the document releases its drawn quantity.
	var line entity.RequestLine
	db.Where("request_doc_entry = ?", 411).First(&line)
	if line.OpenQty != 100 || line.LineStatus != entity.RequestLineStatusOpen {
		t.Errorf("line after delete = %.1f/%s, want 100/open", line.OpenQty, line.LineStatus)
	}
}

func TestRequestLines_ReportsLiveRemaining(t *testing.T) {
	svc, _, db := newTestServices(t, &fakeERP{})
	ctx := context.Background()

	testutil.SeedRequestLine(t, db, 412, 0, "ITEM-A", 100, 80)
	transfer := seedTransfer(t, db, 412, entity.TransferStatusDraft, "user-1")
	if _, err := svc.AddItem(ctx, transfer.ID, &AddItemRequest{ItemCode: "ITEM-A", Quantity: 30}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	views, err := svc.RequestLines(ctx, 412)
	if err != nil {
		t.Fatalf("request lines: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("views = %d, want 1", len(views))
	}
	if views[0].Remaining != 50 {
		t.Errorf("remaining = %.1f, want 50", views[0].Remaining)
	}
}

func TestStageScan_OnlyOnDraft(t *testing.T) {
	_, scanSvc, db := newTestServices(t, &fakeERP{})
	transfer := seedTransfer(t, db, 413, entity.TransferStatusSubmitted, "user-1")

	_, err := scanSvc.Stage(context.Background(), transfer.ID, "user-1", &StageScanRequest{
		ItemCode: "ITEM-A", PackKey: "PK-1", Quantity: 5,
	})
	if !apperr.IsState(err) {
		t.Fatalf("expected state error, got %v", err)
	}
}
