package service

import (
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/audit"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/config"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/repository"
	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/sap"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services WMS服务集合
type Services struct {
	Transfer *TransferService
	Scan     *ScanService
	ERP      ERPClient
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	// Service Layer客户端，物料/库位查询套Redis缓存
	slClient := sap.NewClient(cfg.SAP.BaseURL, cfg.SAP.CompanyDB, cfg.SAP.Username, cfg.SAP.Password, cfg.SAP.RequestTimeout)
	var erp ERPClient = slClient
	if rdb != nil {
		erp = sap.NewCachedClient(slClient, rdb, cfg.SAP.LookupCacheTTL)
	}

	// MinIO过账归档，未配置时跳过
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("minio init failed, posting archive disabled", zap.Error(err))
			minioClient = nil
		}
	}
	archiver := audit.NewArchiver(minioClient, cfg.MinIO.Bucket)

	return &Services{
		Transfer: NewTransferService(db, repos.Transfer, repos.Mirror, repos.Scan, erp, archiver, logger),
		Scan:     NewScanService(repos.Scan, repos.Transfer, logger),
		ERP:      erp,
	}
}
