package sap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/apperr"
)

// =============================================================================
// Client — SAP Business One Service Layer 基础客户端
// 提供会话管理和通用HTTP请求，调拨申请/物料主数据/库位/过账等接口共用。
// 传输与登录握手细节全部封装在这里，业务核心只看到类型化的出入参。
// =============================================================================

// 会话有效期，Service Layer默认30分钟，提前60秒刷新
const sessionTTL = 30 * time.Minute

// Client SAP Service Layer客户端
type Client struct {
	baseURL   string // 如 https://sap-host:50000/b1s/v1
	companyDB string
	username  string
	password  string

	mu            sync.RWMutex // 保护会话缓存
	sessionID     string
	sessionExpire time.Time

	httpClient *http.Client
}

// NewClient 创建Service Layer客户端实例
func NewClient(baseURL, companyDB, username, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		companyDB: companyDB,
		username:  username,
		password:  password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ensureSession 获取有效会话，过期则重新登录
// 双重检查锁定，避免并发请求重复登录
func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.sessionID != "" && time.Now().Before(c.sessionExpire) {
		sid := c.sessionID
		c.mu.RUnlock()
		return sid, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID != "" && time.Now().Before(c.sessionExpire) {
		return c.sessionID, nil
	}

	reqBody := map[string]string{
		"CompanyDB": c.companyDB,
		"UserName":  c.username,
		"Password":  c.password,
	}
	bodyBytes, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Login", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &apperr.ExternalUnavailable{Op: "sap login", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.rejectionError("sap login", resp)
	}

	var result struct {
		SessionID string `json:"SessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}

	c.sessionID = result.SessionID
	c.sessionExpire = time.Now().Add(sessionTTL - time.Minute)

	return c.sessionID, nil
}

// doRequest 执行Service Layer请求
// 自动附加会话cookie；会话失效(401)时重新登录并重试一次。
// 网络错误归类为ExternalUnavailable，业务错误归类为ExternalRejected。
func (c *Client) doRequest(ctx context.Context, op, method, path string, body interface{}, result interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		sid, err := c.ensureSession(ctx)
		if err != nil {
			return err
		}

		var bodyReader io.Reader
		if body != nil {
			bodyBytes, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(&http.Cookie{Name: "B1SESSION", Value: sid})

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &apperr.ExternalUnavailable{Op: op, Err: err}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			// 会话过期，清掉缓存重新登录
			c.mu.Lock()
			c.sessionID = ""
			c.mu.Unlock()
			continue
		}

		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return c.rejectionError(op, resp)
		}

		if result != nil && resp.StatusCode != http.StatusNoContent {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	return &apperr.ExternalUnavailable{Op: op, Err: fmt.Errorf("session refresh failed")}
}

// rejectionError 解析Service Layer错误报文
func (c *Client) rejectionError(op string, resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)

	var slErr struct {
		Error struct {
			Code    int `json:"code"`
			Message struct {
				Value string `json:"value"`
			} `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &slErr); err == nil && slErr.Error.Message.Value != "" {
		return &apperr.ExternalRejected{Op: op, Code: slErr.Error.Code, Msg: slErr.Error.Message.Value}
	}
	return &apperr.ExternalRejected{Op: op, Code: resp.StatusCode, Msg: http.StatusText(resp.StatusCode)}
}
