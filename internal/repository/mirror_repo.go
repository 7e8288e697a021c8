package repository

import (
	"context"

	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/model/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirrorRepository 调拨申请单镜像仓库
type MirrorRepository struct {
	db *gorm.DB
}

func NewMirrorRepository(db *gorm.DB) *MirrorRepository {
	return &MirrorRepository{db: db}
}

// CountByRequest 某张申请单已镜像的行数
func (r *MirrorRepository) CountByRequest(ctx context.Context, requestDocEntry int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.RequestLine{}).
		Where("request_doc_entry = ?", requestDocEntry).
		Count(&count).Error
	return count, err
}

// IngestLines 首次引用时快照申请单行
// 多张单据可能并发首次引用同一申请单，冲突时忽略，镜像以先写入者为准。
func (r *MirrorRepository) IngestLines(ctx context.Context, lines []entity.RequestLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_doc_entry"}, {Name: "line_num"}},
		DoNothing: true,
	}).Create(&lines).Error
}

// ListByRequest 列出申请单的全部镜像行
func (r *MirrorRepository) ListByRequest(ctx context.Context, requestDocEntry int) ([]entity.RequestLine, error) {
	var lines []entity.RequestLine
	err := r.db.WithContext(ctx).
		Where("request_doc_entry = ?", requestDocEntry).
		Order("line_num ASC").
		Find(&lines).Error
	return lines, err
}

// GetLine 取某物料的镜像行
func (r *MirrorRepository) GetLine(ctx context.Context, requestDocEntry int, itemCode string) (*entity.RequestLine, error) {
	return getLine(r.db.WithContext(ctx), requestDocEntry, itemCode)
}

// GetLineTx 在调用方事务内取镜像行
func (r *MirrorRepository) GetLineTx(tx *gorm.DB, requestDocEntry int, itemCode string) (*entity.RequestLine, error) {
	return getLine(tx, requestDocEntry, itemCode)
}

func getLine(db *gorm.DB, requestDocEntry int, itemCode string) (*entity.RequestLine, error) {
	var line entity.RequestLine
	err := db.
		Where("request_doc_entry = ? AND item_code = ?", requestDocEntry, itemCode).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// TransferredTotal 某物料在所有引用该申请单的单据里的已调拨合计
// 跨单据合计，软删除的单据不计入
func (r *MirrorRepository) TransferredTotal(ctx context.Context, requestDocEntry int, itemCode string) (float64, error) {
	return transferredTotal(r.db.WithContext(ctx), requestDocEntry, itemCode)
}

// transferredTotal 允许在外部事务内复用同一计算
func transferredTotal(db *gorm.DB, requestDocEntry int, itemCode string) (float64, error) {
	var result struct{ Total float64 }
	err := db.Raw(`
		SELECT COALESCE(SUM(i.transferred_qty), 0) AS total
		FROM wms_transfer_items i
		JOIN wms_transfers t ON t.id = i.transfer_id
		WHERE t.request_doc_entry = ? AND i.item_code = ? AND t.deleted_at IS NULL
	`, requestDocEntry, itemCode).Scan(&result).Error
	return result.Total, err
}

// Remaining 镜像行的实时剩余可调拨量
// 每次调用都重算：快照时刻的剩余量 - 所有本地单据已调拨合计。
// 不缓存——同一申请单可能被多张并发创建的单据引用。
func (r *MirrorRepository) Remaining(ctx context.Context, requestDocEntry int, itemCode string) (float64, error) {
	return remaining(r.db.WithContext(ctx), requestDocEntry, itemCode)
}

func remaining(db *gorm.DB, requestDocEntry int, itemCode string) (float64, error) {
	var line entity.RequestLine
	if err := db.Where("request_doc_entry = ? AND item_code = ?", requestDocEntry, itemCode).
		First(&line).Error; err != nil {
		return 0, err
	}
	total, err := transferredTotal(db, requestDocEntry, itemCode)
	if err != nil {
		return 0, err
	}
	return line.IngestedOpenQty - total, nil
}

// RemainingTx 在调用方事务内计算实时剩余量
// 校验读与随后的写必须落在同一事务里（check-then-write）
func (r *MirrorRepository) RemainingTx(tx *gorm.DB, requestDocEntry int, itemCode string) (float64, error) {
	return remaining(tx, requestDocEntry, itemCode)
}

// RecomputeOpenTx 在调用方事务内重算open_qty
func (r *MirrorRepository) RecomputeOpenTx(tx *gorm.DB, requestDocEntry int) error {
	return recomputeOpen(tx, requestDocEntry)
}

// RecomputeOpen 重算镜像行的open_qty和line_status
// 从不原地扣减，总是从已调拨合计重新推导
func (r *MirrorRepository) RecomputeOpen(ctx context.Context, requestDocEntry int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return recomputeOpen(tx, requestDocEntry)
	})
}

func recomputeOpen(tx *gorm.DB, requestDocEntry int) error {
	var lines []entity.RequestLine
	if err := tx.Where("request_doc_entry = ?", requestDocEntry).Find(&lines).Error; err != nil {
		return err
	}

	for _, line := range lines {
		total, err := transferredTotal(tx, requestDocEntry, line.ItemCode)
		if err != nil {
			return err
		}

		open := line.IngestedOpenQty - total
		status := entity.RequestLineStatusOpen
		if open <= 0 {
			open = 0
			status = entity.RequestLineStatusClosed
		}

		if err := tx.Model(&entity.RequestLine{}).
			Where("id = ?", line.ID).
			Updates(map[string]interface{}{
				"open_qty":    open,
				"line_status": status,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}
