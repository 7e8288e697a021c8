package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移所有WMS表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 申请单镜像
		&RequestLine{},

		// 调拨单据
		&Transfer{},
		&TransferItem{},
		&BatchAllocation{},
		&SerialAllocation{},
		&ConsumedPackRef{},

		// 扫码暂存
		&ScanStagingEntry{},
	)
}
