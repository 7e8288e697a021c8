package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/model/entity"
	"gorm.io/gorm"
)

// TransferRepository 调拨单仓库
type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// GenerateDocNum 生成本地调拨单号
func (r *TransferRepository) GenerateDocNum() string {
	now := time.Now()
	return fmt.Sprintf("IT-%s-%04d", now.Format("20060102"), now.UnixNano()%10000)
}

// Create 创建调拨单
func (r *TransferRepository) Create(ctx context.Context, transfer *entity.Transfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}

// FindByID 取调拨单，带明细与分配
func (r *TransferRepository) FindByID(ctx context.Context, id string) (*entity.Transfer, error) {
	var transfer entity.Transfer
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("wms_transfer_items.created_at ASC")
		}).
		Preload("Items.BatchAllocations").
		Preload("Items.SerialAllocations").
		First(&transfer, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

// TransferListParams 调拨单列表过滤条件
type TransferListParams struct {
	Status        string
	RequestNumber string
	CreatedBy     string
	Page          int
	Size          int
}

// List 分页查询调拨单
func (r *TransferRepository) List(ctx context.Context, params TransferListParams) ([]entity.Transfer, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Transfer{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.RequestNumber != "" {
		query = query.Where("request_number = ?", params.RequestNumber)
	}
	if params.CreatedBy != "" {
		query = query.Where("created_by = ?", params.CreatedBy)
	}

	var total int64
	query.Count(&total)

	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}

	var transfers []entity.Transfer
	err := query.Preload("Items").
		Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).
		Limit(params.Size).
		Find(&transfers).Error
	return transfers, total, err
}

// HasItem 单据内是否已存在该物料的明细行
func (r *TransferRepository) HasItem(ctx context.Context, transferID, itemCode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.TransferItem{}).
		Where("transfer_id = ? AND item_code = ?", transferID, itemCode).
		Count(&count).Error
	return count > 0, err
}

// HasConsumedPackRef 单据是否已消费过该外部包装引用
func (r *TransferRepository) HasConsumedPackRef(ctx context.Context, transferID, packRef string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ConsumedPackRef{}).
		Where("transfer_id = ? AND pack_ref = ?", transferID, packRef).
		Count(&count).Error
	return count > 0, err
}

// CountItems 单据明细行数
func (r *TransferRepository) CountItems(ctx context.Context, transferID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.TransferItem{}).
		Where("transfer_id = ?", transferID).
		Count(&count).Error
	return count, err
}

// Delete 软删除单据及其明细
func (r *TransferRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("transfer_id = ?", id).Delete(&entity.ScanStagingEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.Transfer{}, "id = ?", id).Error
	})
}

// DB 返回底层db，状态机事务由service层编排
func (r *TransferRepository) DB() *gorm.DB {
	return r.db
}
