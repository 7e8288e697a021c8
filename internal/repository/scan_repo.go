package repository

import (
	"context"

	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/model/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScanRepository 扫码暂存仓库
type ScanRepository struct {
	db *gorm.DB
}

func NewScanRepository(db *gorm.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Upsert 写入暂存记录
// 键为(transfer_id, item_code, pack_key)，同一包重复扫码覆盖旧值而不是追加
func (r *ScanRepository) Upsert(ctx context.Context, scan *entity.ScanStagingEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "transfer_id"}, {Name: "item_code"}, {Name: "pack_key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"quantity", "batch_number", "serial_no", "bin_location", "pack_ref", "updated_at",
		}),
	}).Create(scan).Error
}

// List 查询暂存记录，不删除
func (r *ScanRepository) List(ctx context.Context, transferID, itemCode string) ([]entity.ScanStagingEntry, error) {
	query := r.db.WithContext(ctx).Where("transfer_id = ?", transferID)
	if itemCode != "" {
		query = query.Where("item_code = ?", itemCode)
	}
	var entries []entity.ScanStagingEntry
	err := query.Order("created_at ASC").Find(&entries).Error
	return entries, err
}

// Consume 原子取走暂存记录：同一事务内读取并删除
// 两个并发Consume不会返回同一条记录；没有暂存时返回空集且不删任何行。
func (r *ScanRepository) Consume(ctx context.Context, transferID, itemCode string) ([]entity.ScanStagingEntry, error) {
	var entries []entity.ScanStagingEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		entries, txErr = consumeStaged(tx, transferID, itemCode)
		return txErr
	})
	return entries, err
}

// ConsumeTx 在调用方事务内取走暂存记录
func (r *ScanRepository) ConsumeTx(tx *gorm.DB, transferID, itemCode string) ([]entity.ScanStagingEntry, error) {
	return consumeStaged(tx, transferID, itemCode)
}

// consumeStaged 在给定事务内取走暂存记录，供AddItem的单一事务复用
func consumeStaged(tx *gorm.DB, transferID, itemCode string) ([]entity.ScanStagingEntry, error) {
	var entries []entity.ScanStagingEntry
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transfer_id = ? AND item_code = ?", transferID, itemCode).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if err := tx.Delete(&entity.ScanStagingEntry{}, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
