package entity

import "time"

// ScanStagingEntry 扫码暂存记录
// 每条对应一次物理包/序列扫码，键为(transfer_id, item_code, pack_key)，
// 重复扫同一包是覆盖而不是追加。明细行落库时整组读取并删除（原子取走）。
type ScanStagingEntry struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	TransferID  string    `json:"transfer_id" gorm:"size:32;not null;index:idx_scan_pack,unique"`
	ItemCode    string    `json:"item_code" gorm:"size:64;not null;index:idx_scan_pack,unique"`
	PackKey     string    `json:"pack_key" gorm:"size:128;not null;index:idx_scan_pack,unique"`
	Quantity    float64   `json:"quantity" gorm:"type:decimal(12,4);not null"`
	BatchNumber string    `json:"batch_number" gorm:"size:64"`
	SerialNo    string    `json:"serial_number" gorm:"size:100"`
	BinLocation string    `json:"bin_location" gorm:"size:64"`
	PackRef     string    `json:"external_pack_ref" gorm:"size:64"` // 如GRN号
	CreatedBy   string    `json:"created_by" gorm:"size:64"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ScanStagingEntry) TableName() string {
	return "wms_scan_staging"
}
