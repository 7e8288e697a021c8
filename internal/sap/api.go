package sap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/apperr"
)

// GetTransferRequest 按单号查询调拨申请单
// Service Layer以DocEntry为主键，用户输入的是DocNum，先按DocNum过滤。
func (c *Client) GetTransferRequest(ctx context.Context, docNum string) (*InventoryTransferRequest, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("DocNum eq %s", docNum))
	query.Set("$select", "DocEntry,DocNum,DocumentStatus,FromWarehouse,ToWarehouse,Comments,StockTransferLines")
	path := "/InventoryTransferRequests?" + query.Encode()

	var result struct {
		Value []InventoryTransferRequest `json:"value"`
	}
	if err := c.doRequest(ctx, "fetch transfer request", http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 {
		return nil, apperr.Validationf("transfer request %s not found", docNum)
	}
	return &result.Value[0], nil
}

// GetItemClassification 查询物料的批次/序列号管理标记
func (c *Client) GetItemClassification(ctx context.Context, itemCode string) (*ItemClassification, error) {
	query := url.Values{}
	query.Set("$select", "ItemCode,ItemName,ManageSerialNumbers,ManageBatchNumbers")
	path := fmt.Sprintf("/Items('%s')?%s", url.PathEscape(itemCode), query.Encode())

	var item itemMasterWire
	if err := c.doRequest(ctx, "classify item", http.MethodGet, path, nil, &item); err != nil {
		return nil, err
	}

	return &ItemClassification{
		ItemCode:       item.ItemCode,
		SerialRequired: item.ManageSerialNumbers == "tYES",
		BatchRequired:  item.ManageBatchNumbers == "tYES",
	}, nil
}

// GetBinAbsEntry 按库位编码+仓库解析ERP内部库位标识
func (c *Client) GetBinAbsEntry(ctx context.Context, binCode, warehouse string) (int, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("BinCode eq '%s' and Warehouse eq '%s'", binCode, warehouse))
	query.Set("$select", "AbsEntry,BinCode,Warehouse")
	path := "/BinLocations?" + query.Encode()

	var result struct {
		Value []struct {
			AbsEntry int    `json:"AbsEntry"`
			BinCode  string `json:"BinCode"`
		} `json:"value"`
	}
	if err := c.doRequest(ctx, "resolve bin", http.MethodGet, path, nil, &result); err != nil {
		return 0, err
	}
	if len(result.Value) == 0 {
		return 0, apperr.Validationf("bin %s not found in warehouse %s", binCode, warehouse)
	}
	return result.Value[0].AbsEntry, nil
}

// PostStockTransfer 提交库存调拨过账
// 单次同步调用，不做重试——失败由调用方整体回滚审批事务。
func (c *Client) PostStockTransfer(ctx context.Context, transfer *StockTransfer) (*PostResult, error) {
	var result PostResult
	if err := c.doRequest(ctx, "submit stock transfer", http.MethodPost, "/StockTransfers", transfer, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
