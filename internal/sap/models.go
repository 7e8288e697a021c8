package sap

// Service Layer单据状态值
const (
	DocStatusOpen   = "bost_Open"
	DocStatusClosed = "bost_Close"
)

// 库位分配方向
const (
	BinActionFromWarehouse = "batFromWarehouse"
	BinActionToWarehouse   = "batToWarehouse"
)

// InventoryTransferRequest ERP侧调拨申请单
type InventoryTransferRequest struct {
	DocEntry           int                   `json:"DocEntry"`
	DocNum             int                   `json:"DocNum"`
	DocumentStatus     string                `json:"DocumentStatus"`
	FromWarehouse      string                `json:"FromWarehouse"`
	ToWarehouse        string                `json:"ToWarehouse"`
	Comments           string                `json:"Comments"`
	StockTransferLines []TransferRequestLine `json:"StockTransferLines"`
}

// IsOpen 申请单整体是否仍为打开状态
func (r *InventoryTransferRequest) IsOpen() bool {
	return r.DocumentStatus == DocStatusOpen
}

// TransferRequestLine 申请单行
type TransferRequestLine struct {
	LineNum               int     `json:"LineNum"`
	ItemCode              string  `json:"ItemCode"`
	ItemDescription       string  `json:"ItemDescription"`
	Quantity              float64 `json:"Quantity"`
	RemainingOpenQuantity float64 `json:"RemainingOpenQuantity"`
	LineStatus            string  `json:"LineStatus"`
	UoMCode               string  `json:"UoMCode"`
	FromWarehouseCode     string  `json:"FromWarehouseCode"`
	WarehouseCode         string  `json:"WarehouseCode"` // 目标仓库
}

// IsOpen 行是否仍为打开状态
func (l *TransferRequestLine) IsOpen() bool {
	return l.LineStatus == DocStatusOpen
}

// ItemClassification 物料主数据中的批次/序列号管理标记
type ItemClassification struct {
	ItemCode       string
	SerialRequired bool
	BatchRequired  bool
}

// itemMasterWire 物料主数据报文（只取需要的字段）
type itemMasterWire struct {
	ItemCode            string `json:"ItemCode"`
	ItemName            string `json:"ItemName"`
	ManageSerialNumbers string `json:"ManageSerialNumbers"` // tYES / tNO
	ManageBatchNumbers  string `json:"ManageBatchNumbers"`
}

// StockTransfer 库存调拨过账报文
type StockTransfer struct {
	DocDate            string              `json:"DocDate,omitempty"`
	Comments           string              `json:"Comments,omitempty"`
	FromWarehouse      string              `json:"FromWarehouse"`
	ToWarehouse        string              `json:"ToWarehouse"`
	StockTransferLines []StockTransferLine `json:"StockTransferLines"`
}

// StockTransferLine 调拨过账行
// 序列号管理物料：每个单件一条SerialNumbers子项，数量固定为1；
// 批次管理物料：每个(批次,数量)一条BatchNumbers子项；
// 两者子项数量合计都必须等于行数量。
type StockTransferLine struct {
	LineNum           int     `json:"LineNum"`
	ItemCode          string  `json:"ItemCode"`
	Quantity          float64 `json:"Quantity"`
	FromWarehouseCode string  `json:"FromWarehouseCode"`
	WarehouseCode     string  `json:"WarehouseCode"`
	BaseType          string  `json:"BaseType,omitempty"` // InventoryTransferRequest
	BaseEntry         int     `json:"BaseEntry,omitempty"`
	BaseLine          int     `json:"BaseLine,omitempty"`

	BatchNumbers   []BatchNumberEntry  `json:"BatchNumbers,omitempty"`
	SerialNumbers  []SerialNumberEntry `json:"SerialNumbers,omitempty"`
	BinAllocations []BinAllocation     `json:"StockTransferLinesBinAllocations,omitempty"`
}

// BatchNumberEntry 批次子项
type BatchNumberEntry struct {
	BatchNumber string  `json:"BatchNumber"`
	Quantity    float64 `json:"Quantity"`
}

// SerialNumberEntry 序列号子项
type SerialNumberEntry struct {
	InternalSerialNumber string  `json:"InternalSerialNumber"`
	Quantity             float64 `json:"Quantity"`
}

// BinAllocation 库位分配子项，BinAbsEntry为ERP内部库位标识
type BinAllocation struct {
	BinAbsEntry    int     `json:"BinAbsEntry"`
	Quantity       float64 `json:"Quantity"`
	BinActionType  string  `json:"BinActionType"`
	BaseLineNumber int     `json:"BaseLineNumber"`
}

// PostResult 过账结果
type PostResult struct {
	DocEntry int `json:"DocEntry"`
	DocNum   int `json:"DocNum"`
}
