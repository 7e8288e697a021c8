package repository

import "gorm.io/gorm"

// Repositories WMS仓库集合
type Repositories struct {
	Transfer *TransferRepository
	Mirror   *MirrorRepository
	Scan     *ScanRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Transfer: NewTransferRepository(db),
		Mirror:   NewMirrorRepository(db),
		Scan:     NewScanRepository(db),
	}
}
