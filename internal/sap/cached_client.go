package sap

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// CachedClient — 物料/库位查询的记忆化装饰器
// 物料的批次/序列号标记和库位AbsEntry几乎不变化，按TTL缓存在Redis；
// 调拨申请单查询和过账永远直达，不缓存。
// 缓存失效是显式操作(Invalidate*)，不存在隐式的进程内全局字典。
// =============================================================================

const (
	itemCacheKeyPrefix = "wms:item:"
	binCacheKeyPrefix  = "wms:bin:"
)

// CachedClient 带Redis查询缓存的Service Layer客户端
type CachedClient struct {
	inner *Client
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedClient 创建带缓存的客户端
func NewCachedClient(inner *Client, rdb *redis.Client, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedClient{inner: inner, rdb: rdb, ttl: ttl}
}

// GetTransferRequest 申请单查询不缓存，剩余量必须实时
func (c *CachedClient) GetTransferRequest(ctx context.Context, docNum string) (*InventoryTransferRequest, error) {
	return c.inner.GetTransferRequest(ctx, docNum)
}

// GetItemClassification 物料标记查询，Redis缓存
func (c *CachedClient) GetItemClassification(ctx context.Context, itemCode string) (*ItemClassification, error) {
	key := itemCacheKeyPrefix + itemCode

	if c.rdb != nil {
		if cached, err := c.rdb.Get(ctx, key).Result(); err == nil {
			var cls ItemClassification
			if err := json.Unmarshal([]byte(cached), &cls); err == nil {
				return &cls, nil
			}
		}
	}

	cls, err := c.inner.GetItemClassification(ctx, itemCode)
	if err != nil {
		return nil, err
	}

	if c.rdb != nil {
		if data, err := json.Marshal(cls); err == nil {
			c.rdb.Set(ctx, key, data, c.ttl)
		}
	}
	return cls, nil
}

// GetBinAbsEntry 库位解析，Redis缓存
func (c *CachedClient) GetBinAbsEntry(ctx context.Context, binCode, warehouse string) (int, error) {
	key := fmt.Sprintf("%s%s:%s", binCacheKeyPrefix, warehouse, binCode)

	if c.rdb != nil {
		if cached, err := c.rdb.Get(ctx, key).Result(); err == nil {
			if abs, err := strconv.Atoi(cached); err == nil {
				return abs, nil
			}
		}
	}

	abs, err := c.inner.GetBinAbsEntry(ctx, binCode, warehouse)
	if err != nil {
		return 0, err
	}

	if c.rdb != nil {
		c.rdb.Set(ctx, key, strconv.Itoa(abs), c.ttl)
	}
	return abs, nil
}

// PostStockTransfer 过账直达
func (c *CachedClient) PostStockTransfer(ctx context.Context, transfer *StockTransfer) (*PostResult, error) {
	return c.inner.PostStockTransfer(ctx, transfer)
}

// InvalidateItem 清除单个物料缓存
func (c *CachedClient) InvalidateItem(ctx context.Context, itemCode string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, itemCacheKeyPrefix+itemCode).Err()
}

// InvalidateBin 清除单个库位缓存
func (c *CachedClient) InvalidateBin(ctx context.Context, binCode, warehouse string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, fmt.Sprintf("%s%s:%s", binCacheKeyPrefix, warehouse, binCode)).Err()
}
