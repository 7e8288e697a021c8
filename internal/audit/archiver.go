package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/sap"
)

// Archiver 过账报文归档
// 每次成功过账把请求报文和ERP返回写进对象存储，供事后对账。
// 归档失败只影响审计留痕，不影响单据流转。
type Archiver struct {
	client *minio.Client
	bucket string
}

// NewArchiver 创建归档器，client为nil时归档为空操作
func NewArchiver(client *minio.Client, bucket string) *Archiver {
	return &Archiver{client: client, bucket: bucket}
}

type postingRecord struct {
	TransferID string             `json:"transfer_id"`
	PostedAt   time.Time          `json:"posted_at"`
	Payload    *sap.StockTransfer `json:"payload"`
	Result     *sap.PostResult    `json:"result"`
}

// ArchivePosting 归档一次过账
func (a *Archiver) ArchivePosting(ctx context.Context, transferID string, payload *sap.StockTransfer, result *sap.PostResult) error {
	if a.client == nil {
		return nil
	}

	record := postingRecord{
		TransferID: transferID,
		PostedAt:   time.Now(),
		Payload:    payload,
		Result:     result,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal posting record: %w", err)
	}

	objectName := fmt.Sprintf("postings/%s/%s.json", time.Now().Format("2006/01/02"), transferID)
	_, err = a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("upload posting record: %w", err)
	}
	return nil
}
