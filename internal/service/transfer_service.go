package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/apperr"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/model/entity"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/repository"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/sap"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TransferService 调拨单服务
// 单据生命周期：draft -> submitted -> {qc_approved -> posted, rejected}，
// rejected -> draft（重开）。所有变更都在一次调用内同步完成，无后台任务。
type TransferService struct {
	db           *gorm.DB
	transferRepo *repository.TransferRepository
	mirrorRepo   *repository.MirrorRepository
	scanRepo     *repository.ScanRepository
	erp          ERPClient
	posting      *PostingBuilder
	archiver     PostingArchiver
	logger       *zap.Logger
}

// NewTransferService 创建调拨单服务
func NewTransferService(
	db *gorm.DB,
	transferRepo *repository.TransferRepository,
	mirrorRepo *repository.MirrorRepository,
	scanRepo *repository.ScanRepository,
	erp ERPClient,
	archiver PostingArchiver,
	logger *zap.Logger,
) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{
		db:           db,
		transferRepo: transferRepo,
		mirrorRepo:   mirrorRepo,
		scanRepo:     scanRepo,
		erp:          erp,
		posting:      NewPostingBuilder(erp),
		archiver:     archiver,
		logger:       logger,
	}
}

// CreateTransferRequest 创建调拨单请求
type CreateTransferRequest struct {
	RequestNumber string `json:"request_number" binding:"required"`
}

// Create 基于ERP调拨申请单创建本地草稿单
// 申请单必须仍为打开状态且至少有一条打开行；首次引用时快照镜像行。
func (s *TransferService) Create(ctx context.Context, userID string, req *CreateTransferRequest) (*entity.Transfer, error) {
	request, err := s.erp.GetTransferRequest(ctx, req.RequestNumber)
	if err != nil {
		return nil, err
	}

	if !request.IsOpen() {
		return nil, apperr.Validationf("transfer request %s is closed", req.RequestNumber)
	}

	now := time.Now()
	var mirrorLines []entity.RequestLine
	for _, line := range request.StockTransferLines {
		if !line.IsOpen() {
			continue
		}
		mirrorLines = append(mirrorLines, entity.RequestLine{
			ID:              uuid.New().String()[:32],
			RequestDocEntry: request.DocEntry,
			LineNum:         line.LineNum,
			RequestNumber:   strconv.Itoa(request.DocNum),
			ItemCode:        line.ItemCode,
			ItemName:        line.ItemDescription,
			RequestedQty:    line.Quantity,
			IngestedOpenQty: line.RemainingOpenQuantity,
			OpenQty:         line.RemainingOpenQuantity,
			LineStatus:      entity.RequestLineStatusOpen,
			UoM:             line.UoMCode,
			FromWarehouse:   line.FromWarehouseCode,
			ToWarehouse:     line.WarehouseCode,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	if len(mirrorLines) == 0 {
		return nil, apperr.Validationf("transfer request %s has no open lines", req.RequestNumber)
	}

	// 镜像归属于申请单而非单据：首次引用者写入，后来者复用已有快照
	if err := s.mirrorRepo.IngestLines(ctx, mirrorLines); err != nil {
		return nil, err
	}

	fromWhs := request.FromWarehouse
	toWhs := request.ToWarehouse
	if fromWhs == "" {
		fromWhs = mirrorLines[0].FromWarehouse
	}
	if toWhs == "" {
		toWhs = mirrorLines[0].ToWarehouse
	}

	transfer := &entity.Transfer{
		ID:              uuid.New().String()[:32],
		DocNum:          s.transferRepo.GenerateDocNum(),
		RequestNumber:   strconv.Itoa(request.DocNum),
		RequestDocEntry: request.DocEntry,
		Status:          entity.TransferStatusDraft,
		FromWarehouse:   fromWhs,
		ToWarehouse:     toWhs,
		CreatedBy:       userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.transferRepo.Create(ctx, transfer); err != nil {
		return nil, err
	}
	return transfer, nil
}

// Get 取调拨单详情
func (s *TransferService) Get(ctx context.Context, id string) (*entity.Transfer, error) {
	return s.transferRepo.FindByID(ctx, id)
}

// List 分页查询调拨单
func (s *TransferService) List(ctx context.Context, params repository.TransferListParams) ([]entity.Transfer, int64, error) {
	return s.transferRepo.List(ctx, params)
}

// AddItemRequest 添加明细行请求
type AddItemRequest struct {
	ItemCode string  `json:"item_code" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
	FromBin  string  `json:"from_bin"`
	ToBin    string  `json:"to_bin"`
	PackRef  string  `json:"external_pack_ref"` // 如GRN号
}

// AddItem 向草稿单添加明细行
// 规则集中在这一处：
//  1. 每张单据同一物料只允许一行
//  2. 数量不得超过镜像行的实时剩余量（跨单据合计）
//  3. 物料的批次/序列号标记取自ERP物料主数据并存在行上
//  4. 该物料的扫码暂存整组原子取走，按(批次,库位)归并成分配明细；
//     暂存合计与数量不符只记日志不阻断
//  5. 同一外部包装引用（GRN）在一张单据内只能消费一次
//
// 校验读与写在同一数据库事务内完成。跨单据并发创建时两边都可能通过
// 校验造成相对ERP的超配，此处不加跨单据锁，ERP在过账时做最终仲裁。
func (s *TransferService) AddItem(ctx context.Context, transferID string, req *AddItemRequest) (*entity.TransferItem, error) {
	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != entity.TransferStatusDraft {
		return nil, apperr.NewStateError("add item", transfer.Status, entity.TransferStatusDraft)
	}
	if req.Quantity <= 0 {
		return nil, apperr.Validationf("quantity must be positive")
	}

	// 物料主数据查询在事务外完成（网络调用）
	classification, err := s.erp.GetItemClassification(ctx, req.ItemCode)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	item := &entity.TransferItem{
		ID:             uuid.New().String()[:32],
		TransferID:     transfer.ID,
		ItemCode:       req.ItemCode,
		RequestedQty:   req.Quantity,
		TransferredQty: req.Quantity,
		RemainingQty:   0,
		SerialRequired: classification.SerialRequired,
		BatchRequired:  classification.BatchRequired,
		FromBin:        req.FromBin,
		ToBin:          req.ToBin,
		QCStatus:       entity.QCStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 重复物料检查
		var dup int64
		if err := tx.Model(&entity.TransferItem{}).
			Where("transfer_id = ? AND item_code = ?", transfer.ID, req.ItemCode).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return apperr.Validationf("item %s already exists on transfer %s", req.ItemCode, transfer.DocNum)
		}

		// 实时剩余量校验
		remaining, err := s.mirrorRepo.RemainingTx(tx, transfer.RequestDocEntry, req.ItemCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Validationf("item %s is not on request %s", req.ItemCode, transfer.RequestNumber)
			}
			return err
		}
		if req.Quantity-remaining > qtyEpsilon {
			return apperr.Validationf("quantity %.4f exceeds remaining open quantity %.4f for item %s",
				req.Quantity, remaining, req.ItemCode)
		}

		if line, err := s.mirrorRepo.GetLineTx(tx, transfer.RequestDocEntry, req.ItemCode); err == nil {
			item.ItemName = line.ItemName
			item.UoM = line.UoM
		}

		// 取走扫码暂存并归并成分配明细
		staged, err := s.scanRepo.ConsumeTx(tx, transfer.ID, req.ItemCode)
		if err != nil {
			return err
		}
		s.attachAllocations(item, staged)

		stagedTotal := 0.0
		for _, e := range staged {
			stagedTotal += e.Quantity
		}
		if len(staged) > 0 && !qtyEqual(stagedTotal, req.Quantity) {
			// 历史行为：不阻断，仅记录差异
			s.logger.Warn("staged quantity differs from item quantity",
				zap.String("transfer", transfer.DocNum),
				zap.String("item_code", req.ItemCode),
				zap.Float64("staged", stagedTotal),
				zap.Float64("quantity", req.Quantity),
			)
		}

		// 外部包装引用在一张单据内只能消费一次
		packRefs := collectPackRefs(req.PackRef, staged)
		for _, ref := range packRefs {
			var used int64
			if err := tx.Model(&entity.ConsumedPackRef{}).
				Where("transfer_id = ? AND pack_ref = ?", transfer.ID, ref).
				Count(&used).Error; err != nil {
				return err
			}
			if used > 0 {
				return apperr.Validationf("pack reference %s already consumed on transfer %s", ref, transfer.DocNum)
			}
			if err := tx.Create(&entity.ConsumedPackRef{
				ID:         uuid.New().String()[:32],
				TransferID: transfer.ID,
				PackRef:    ref,
				CreatedAt:  now,
			}).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(item).Error; err != nil {
			return err
		}

		// 重算镜像行剩余量（重查，不扣减）
		return s.mirrorRepo.RecomputeOpenTx(tx, transfer.RequestDocEntry)
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

// attachAllocations 把暂存记录归并为行上的分配明细
// 序列号管理：每条暂存对应一个物理单件；
// 批次管理：按(批次,库位)归并数量。
func (s *TransferService) attachAllocations(item *entity.TransferItem, staged []entity.ScanStagingEntry) {
	if len(staged) == 0 {
		return
	}

	if item.SerialRequired {
		for _, e := range staged {
			serial := e.SerialNo
			if serial == "" {
				serial = e.PackKey
			}
			item.SerialAllocations = append(item.SerialAllocations, entity.SerialAllocation{
				ID:             uuid.New().String()[:32],
				TransferItemID: item.ID,
				SerialNumber:   serial,
			})
		}
		return
	}

	type batchKey struct{ batch, bin string }
	sums := make(map[batchKey]float64)
	for _, e := range staged {
		if e.BatchNumber == "" && !item.BatchRequired {
			continue
		}
		sums[batchKey{e.BatchNumber, e.BinLocation}] += e.Quantity
	}

	keys := make([]batchKey, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].batch != keys[j].batch {
			return keys[i].batch < keys[j].batch
		}
		return keys[i].bin < keys[j].bin
	})

	for _, k := range keys {
		item.BatchAllocations = append(item.BatchAllocations, entity.BatchAllocation{
			ID:             uuid.New().String()[:32],
			TransferItemID: item.ID,
			BatchNumber:    k.batch,
			Quantity:       sums[k],
			BinLocation:    k.bin,
		})
	}
}

// collectPackRefs 合并显式引用与暂存记录携带的引用，去重保序
func collectPackRefs(explicit string, staged []entity.ScanStagingEntry) []string {
	seen := make(map[string]bool)
	var refs []string
	add := func(ref string) {
		if ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	add(explicit)
	for _, e := range staged {
		add(e.PackRef)
	}
	return refs
}

// Submit 提交单据待质检
// 不触达ERP——同一申请单在其关闭前允许多张submitted/qc_approved单据
// 并存，支持跨用户/会话的分批执行。
func (s *TransferService) Submit(ctx context.Context, transferID string) (*entity.Transfer, error) {
	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != entity.TransferStatusDraft {
		return nil, apperr.NewStateError("submit", transfer.Status, entity.TransferStatusDraft)
	}
	if len(transfer.Items) == 0 {
		return nil, apperr.Validationf("transfer %s has no items", transfer.DocNum)
	}

	err = s.db.WithContext(ctx).Model(&entity.Transfer{}).
		Where("id = ?", transfer.ID).
		Updates(map[string]interface{}{
			"status":     entity.TransferStatusSubmitted,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return nil, err
	}
	return s.transferRepo.FindByID(ctx, transferID)
}

// QCApprove 质检通过并过账
// 审批与过账是一个原子单元：行状态、单据状态、ERP过账在同一数据库
// 事务内完成，过账失败（不可达或被拒）整体回滚，单据停留在submitted。
// ERP过账本身是单次同步调用，超时与其他失败同样处理。
func (s *TransferService) QCApprove(ctx context.Context, transferID, approverID, notes string) (*entity.Transfer, error) {
	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != entity.TransferStatusSubmitted {
		return nil, apperr.NewStateError("qc approve", transfer.Status, entity.TransferStatusSubmitted)
	}

	mirrorLines, err := s.mirrorRepo.ListByRequest(ctx, transfer.RequestDocEntry)
	if err != nil {
		return nil, err
	}
	lineIndex := make(map[string]entity.RequestLine, len(mirrorLines))
	for _, line := range mirrorLines {
		lineIndex[line.ItemCode] = line
	}

	// 报文构造（含库位解析）在数据库事务外完成
	payload, err := s.posting.BuildStockTransfer(ctx, transfer, lineIndex)
	if err != nil {
		return nil, err
	}

	var result *sap.PostResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		if err := tx.Model(&entity.TransferItem{}).
			Where("transfer_id = ?", transfer.ID).
			Updates(map[string]interface{}{
				"qc_status":  entity.QCStatusApproved,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		if err := tx.Model(&entity.Transfer{}).
			Where("id = ?", transfer.ID).
			Updates(map[string]interface{}{
				"status":         entity.TransferStatusQCApproved,
				"approver_id":    approverID,
				"approval_notes": notes,
				"approved_at":    now,
				"updated_at":     now,
			}).Error; err != nil {
			return err
		}

		// 事务内的外部过账：失败即整体回滚，状态留在submitted
		posted, err := s.erp.PostStockTransfer(ctx, payload)
		if err != nil {
			return err
		}
		result = posted

		return tx.Model(&entity.Transfer{}).
			Where("id = ?", transfer.ID).
			Updates(map[string]interface{}{
				"status":             entity.TransferStatusPosted,
				"external_doc_num":   strconv.Itoa(posted.DocNum),
				"external_doc_entry": posted.DocEntry,
				"updated_at":         time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transfer posted",
		zap.String("transfer", transfer.DocNum),
		zap.Int("external_doc_num", result.DocNum),
	)

	// 过账报文归档，尽力而为
	if s.archiver != nil {
		go func() {
			bgCtx := context.Background()
			if err := s.archiver.ArchivePosting(bgCtx, transfer.ID, payload, result); err != nil {
				s.logger.Warn("archive posting payload failed",
					zap.String("transfer", transfer.DocNum), zap.Error(err))
			}
		}()
	}

	return s.transferRepo.FindByID(ctx, transferID)
}

// QCReject 质检拒绝，必须填写原因
func (s *TransferService) QCReject(ctx context.Context, transferID, approverID, notes string) (*entity.Transfer, error) {
	if notes == "" {
		return nil, apperr.Validationf("rejection notes are required")
	}

	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != entity.TransferStatusSubmitted {
		return nil, apperr.NewStateError("qc reject", transfer.Status, entity.TransferStatusSubmitted)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&entity.TransferItem{}).
			Where("transfer_id = ?", transfer.ID).
			Updates(map[string]interface{}{
				"qc_status":  entity.QCStatusRejected,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&entity.Transfer{}).
			Where("id = ?", transfer.ID).
			Updates(map[string]interface{}{
				"status":         entity.TransferStatusRejected,
				"approver_id":    approverID,
				"approval_notes": notes,
				"updated_at":     now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.transferRepo.FindByID(ctx, transferID)
}

// Reopen 重开被拒绝的单据
// 只允许从rejected重开；清空审批人与原因，明细行回到pending。
func (s *TransferService) Reopen(ctx context.Context, transferID string) (*entity.Transfer, error) {
	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != entity.TransferStatusRejected {
		return nil, apperr.NewStateError("reopen", transfer.Status, entity.TransferStatusRejected)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&entity.TransferItem{}).
			Where("transfer_id = ?", transfer.ID).
			Updates(map[string]interface{}{
				"qc_status":  entity.QCStatusPending,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&entity.Transfer{}).
			Where("id = ?", transfer.ID).
			Updates(map[string]interface{}{
				"status":         entity.TransferStatusDraft,
				"approver_id":    "",
				"approval_notes": "",
				"approved_at":    nil,
				"updated_at":     now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.transferRepo.FindByID(ctx, transferID)
}

// Delete 删除单据，仅草稿/已拒绝且仅限创建人
func (s *TransferService) Delete(ctx context.Context, transferID, userID string) error {
	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status != entity.TransferStatusDraft && transfer.Status != entity.TransferStatusRejected {
		return apperr.NewStateError("delete", transfer.Status,
			entity.TransferStatusDraft, entity.TransferStatusRejected)
	}
	if transfer.CreatedBy != userID {
		return apperr.Validationf("only the owner can delete transfer %s", transfer.DocNum)
	}

	if err := s.transferRepo.Delete(ctx, transferID); err != nil {
		return err
	}
	// 删除释放了已占用的数量，重算镜像行
	return s.mirrorRepo.RecomputeOpen(ctx, transfer.RequestDocEntry)
}

// RequestLineView 镜像行及其实时剩余量
type RequestLineView struct {
	entity.RequestLine
	Remaining float64 `json:"remaining"`
}

// RequestLines 某张申请单的镜像行与实时剩余量
func (s *TransferService) RequestLines(ctx context.Context, requestDocEntry int) ([]RequestLineView, error) {
	lines, err := s.mirrorRepo.ListByRequest(ctx, requestDocEntry)
	if err != nil {
		return nil, err
	}

	views := make([]RequestLineView, 0, len(lines))
	for _, line := range lines {
		rem, err := s.mirrorRepo.Remaining(ctx, line.RequestDocEntry, line.ItemCode)
		if err != nil {
			return nil, err
		}
		views = append(views, RequestLineView{RequestLine: line, Remaining: rem})
	}
	return views, nil
}
