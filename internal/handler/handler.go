package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/apperr"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/service"
	"gorm.io/gorm"
)

// Handlers WMS HTTP处理器集合
type Handlers struct {
	Transfer *TransferHandler
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Transfer: NewTransferHandler(services.Transfer, services.Scan),
	}
}

// respondError 把错误分类映射成HTTP状态码与业务码
//
//	ValidationError     -> 400 未发生任何写入
//	StateError          -> 409 状态机冲突
//	ExternalRejected    -> 422 ERP收到但拒绝，需修正输入
//	ExternalUnavailable -> 502 ERP不可达，可稍后重试
func respondError(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"code": 10001, "message": err.Error()})
	case apperr.IsState(err):
		c.JSON(http.StatusConflict, gin.H{"code": 10003, "message": err.Error()})
	case apperr.IsExternalRejected(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"code": 20001, "message": err.Error()})
	case apperr.IsExternalUnavailable(err):
		c.JSON(http.StatusBadGateway, gin.H{"code": 20002, "message": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": 10002, "message": "record not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"code": 50001, "message": err.Error()})
	}
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": data})
}

func currentUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if uid, ok := userID.(string); ok {
			return uid
		}
	}
	return ""
}
