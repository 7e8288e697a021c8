package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/repository"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/service"
)

// TransferHandler 调拨单HTTP处理器
type TransferHandler struct {
	svc     *service.TransferService
	scanSvc *service.ScanService
}

func NewTransferHandler(svc *service.TransferService, scanSvc *service.ScanService) *TransferHandler {
	return &TransferHandler{svc: svc, scanSvc: scanSvc}
}

// Create POST /transfers
func (h *TransferHandler) Create(c *gin.Context) {
	var req service.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
		return
	}
	transfer, err := h.svc.Create(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, transfer)
}

// List GET /transfers
func (h *TransferHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	params := repository.TransferListParams{
		Status:        c.Query("status"),
		RequestNumber: c.Query("request_number"),
		CreatedBy:     c.Query("created_by"),
		Page:          page,
		Size:          size,
	}
	transfers, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"items": transfers, "total": total, "page": page, "size": size})
}

// Get GET /transfers/:id
func (h *TransferHandler) Get(c *gin.Context) {
	transfer, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, transfer)
}

// Delete DELETE /transfers/:id
func (h *TransferHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// AddItem POST /transfers/:id/items
func (h *TransferHandler) AddItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
		return
	}
	item, err := h.svc.AddItem(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, item)
}

// Submit POST /transfers/:id/submit
func (h *TransferHandler) Submit(c *gin.Context) {
	transfer, err := h.svc.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, transfer)
}

type approvalRequest struct {
	Notes string `json:"notes"`
}

// Approve POST /transfers/:id/approve
// 审批与ERP过账是一个原子单元，过账失败单据停留在submitted。
// 审批意见可选，空请求体等同于无意见。
func (h *TransferHandler) Approve(c *gin.Context) {
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
		return
	}
	transfer, err := h.svc.QCApprove(c.Request.Context(), c.Param("id"), currentUserID(c), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, transfer)
}

// Reject POST /transfers/:id/reject
// 拒绝原因必填，但校验在service层——空请求体走同一条ValidationError路径
func (h *TransferHandler) Reject(c *gin.Context) {
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
		return
	}
	transfer, err := h.svc.QCReject(c.Request.Context(), c.Param("id"), currentUserID(c), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, transfer)
}

// Reopen POST /transfers/:id/reopen
func (h *TransferHandler) Reopen(c *gin.Context) {
	transfer, err := h.svc.Reopen(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, transfer)
}

// Export GET /transfers/:id/export
func (h *TransferHandler) Export(c *gin.Context) {
	f, filename, err := h.svc.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		respondError(c, err)
	}
}

// StageScan POST /transfers/:id/scans
func (h *TransferHandler) StageScan(c *gin.Context) {
	var req service.StageScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
		return
	}
	scan, err := h.scanSvc.Stage(c.Request.Context(), c.Param("id"), currentUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, scan)
}

// ListScans GET /transfers/:id/scans
func (h *TransferHandler) ListScans(c *gin.Context) {
	scans, err := h.scanSvc.List(c.Request.Context(), c.Param("id"), c.Query("item_code"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, scans)
}

// RequestLines GET /requests/:docEntry/lines
// 申请单镜像行及跨单据合计后的实时剩余量
func (h *TransferHandler) RequestLines(c *gin.Context) {
	docEntry, err := strconv.Atoi(c.Param("docEntry"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": "invalid request doc entry"})
		return
	}
	lines, err := h.svc.RequestLines(c.Request.Context(), docEntry)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, lines)
}
