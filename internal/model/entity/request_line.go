package entity

import "time"

// RequestLineStatus 申请单镜像行状态
const (
	RequestLineStatusOpen   = "open"
	RequestLineStatusClosed = "closed"
)

// RequestLine ERP调拨申请单的本地镜像行
// 首次有单据引用某张申请单时一次性快照所有open行；归属于申请单而非
// 某张本地单据，多张单据可引用同一组镜像行。
// 除 open_qty/line_status 外不可变；open_qty 从不原地扣减，
// 而是重查所有引用单据的已调拨合计后重算。
type RequestLine struct {
	ID              string    `json:"id" gorm:"primaryKey;size:32"`
	RequestDocEntry int       `json:"request_doc_entry" gorm:"not null;index:idx_request_line,unique"`
	LineNum         int       `json:"line_num" gorm:"not null;index:idx_request_line,unique"`
	RequestNumber   string    `json:"request_number" gorm:"size:32;not null;index"`
	ItemCode        string    `json:"item_code" gorm:"size:64;not null;index"`
	ItemName        string    `json:"item_name" gorm:"size:128"`
	RequestedQty    float64   `json:"requested_quantity" gorm:"type:decimal(12,4);not null"`
	IngestedOpenQty float64   `json:"ingested_open_quantity" gorm:"type:decimal(12,4);not null"` // 快照时刻ERP侧的剩余量，不可变
	OpenQty         float64   `json:"remaining_open_quantity" gorm:"type:decimal(12,4);not null"`
	LineStatus      string    `json:"line_status" gorm:"size:16;not null;default:open"`
	UoM             string    `json:"uom" gorm:"size:20"`
	FromWarehouse   string    `json:"from_warehouse" gorm:"size:16"`
	ToWarehouse     string    `json:"to_warehouse" gorm:"size:16"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (RequestLine) TableName() string {
	return "wms_request_lines"
}
