package entity

import (
	"time"

	"gorm.io/gorm"
)

// TransferStatus 调拨单状态
const (
	TransferStatusDraft      = "draft"       // 草稿
	TransferStatusSubmitted  = "submitted"   // 已提交，待质检
	TransferStatusQCApproved = "qc_approved" // 质检通过（过渡态，与过账同事务）
	TransferStatusPosted     = "posted"      // 已过账到ERP，终态
	TransferStatusRejected   = "rejected"    // 质检拒绝
)

// QCStatus 明细行质检状态
const (
	QCStatusPending  = "pending"
	QCStatusApproved = "approved"
	QCStatusRejected = "rejected"
)

// Transfer 库存调拨单
// 本地单据，引用ERP侧的调拨申请单（InventoryTransferRequest）。
// 同一张申请单可以被多张本地单据分批引用，ERP在过账时做最终校验。
type Transfer struct {
	ID               string     `json:"id" gorm:"primaryKey;size:32"`
	DocNum           string     `json:"doc_num" gorm:"size:32;not null;uniqueIndex"`
	RequestNumber    string     `json:"external_request_number" gorm:"size:32;not null;index"`
	RequestDocEntry  int        `json:"request_doc_entry" gorm:"not null;index"`
	Status           string     `json:"status" gorm:"size:16;not null;default:draft;index"`
	FromWarehouse    string     `json:"from_warehouse" gorm:"size:16;not null"`
	ToWarehouse      string     `json:"to_warehouse" gorm:"size:16;not null"`
	ExternalDocNum   string     `json:"external_doc_number" gorm:"size:32"` // 过账成功后ERP返回的单号
	ExternalDocEntry int        `json:"external_doc_entry"`
	ApproverID       string     `json:"approver_ref" gorm:"size:64"`
	ApprovalNotes    string     `json:"approval_notes" gorm:"type:text"`
	ApprovedAt       *time.Time `json:"approved_at"`
	CreatedBy        string     `json:"created_by" gorm:"size:64;not null;index"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`

	Items []TransferItem `json:"items" gorm:"foreignKey:TransferID"`
}

func (Transfer) TableName() string {
	return "wms_transfers"
}

// TransferItem 调拨单明细行
// 每张单据内同一物料只允许一行；requested_qty在创建时刻不得超过
// 申请单镜像行的剩余可调拨量。
type TransferItem struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	TransferID     string    `json:"transfer_id" gorm:"size:32;not null;index:idx_transfer_item,unique"`
	ItemCode       string    `json:"item_code" gorm:"size:64;not null;index:idx_transfer_item,unique"`
	ItemName       string    `json:"item_name" gorm:"size:128"`
	RequestedQty   float64   `json:"requested_quantity" gorm:"type:decimal(12,4);not null"`
	TransferredQty float64   `json:"transferred_quantity" gorm:"type:decimal(12,4);not null;default:0"`
	RemainingQty   float64   `json:"remaining_quantity" gorm:"type:decimal(12,4);not null;default:0"`
	UoM            string    `json:"uom" gorm:"size:20"`
	SerialRequired bool      `json:"serial_required" gorm:"not null;default:false"`
	BatchRequired  bool      `json:"batch_required" gorm:"not null;default:false"`
	FromBin        string    `json:"from_bin" gorm:"size:64"`
	ToBin          string    `json:"to_bin" gorm:"size:64"`
	QCStatus       string    `json:"qc_status" gorm:"size:16;not null;default:pending"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	BatchAllocations  []BatchAllocation  `json:"batch_allocations,omitempty" gorm:"foreignKey:TransferItemID"`
	SerialAllocations []SerialAllocation `json:"serial_allocations,omitempty" gorm:"foreignKey:TransferItemID"`
}

func (TransferItem) TableName() string {
	return "wms_transfer_items"
}

// BatchAllocation 批次分配
// 旧系统把批次/序列号存成无类型JSON，这里拆成独立子表，
// 只在过账适配层序列化成ERP的报文格式。
type BatchAllocation struct {
	ID             string  `json:"id" gorm:"primaryKey;size:32"`
	TransferItemID string  `json:"transfer_item_id" gorm:"size:32;not null;index"`
	BatchNumber    string  `json:"batch" gorm:"size:64;not null"`
	Quantity       float64 `json:"qty" gorm:"type:decimal(12,4);not null"`
	BinLocation    string  `json:"bin" gorm:"size:64"`
}

func (BatchAllocation) TableName() string {
	return "wms_batch_allocations"
}

// SerialAllocation 序列号分配，每行对应一个物理单件
type SerialAllocation struct {
	ID             string `json:"id" gorm:"primaryKey;size:32"`
	TransferItemID string `json:"transfer_item_id" gorm:"size:32;not null;index"`
	SerialNumber   string `json:"serial_number" gorm:"size:100;not null"`
}

func (SerialAllocation) TableName() string {
	return "wms_serial_allocations"
}

// ConsumedPackRef 已消费的外部包装引用（如GRN号）
// 同一张单据内同一个引用只允许消费一次，防止同一物理包被挂到两条明细上。
type ConsumedPackRef struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	TransferID string    `json:"transfer_id" gorm:"size:32;not null;index:idx_consumed_ref,unique"`
	PackRef    string    `json:"pack_ref" gorm:"size:64;not null;index:idx_consumed_ref,unique"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ConsumedPackRef) TableName() string {
	return "wms_consumed_pack_refs"
}
