package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	"github.com/smallbiznis/sadaqah/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PoolLedger is the single-row-per-key table backing SQLStore.
type PoolLedger struct {
	LedgerKey string         `gorm:"column:ledger_key;primaryKey;size:128"`
	Version   uint64         `gorm:"column:version;not null"`
	Payload   datatypes.JSON `gorm:"column:payload;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

func (PoolLedger) TableName() string { return "pool_ledgers" }

// SQLStore persists the ledger document in a relational database. The
// version column provides compare-and-swap across service instances.
type SQLStore struct {
	db  *gorm.DB
	key string
}

func NewSQLStore(conn *gorm.DB, key string) (*SQLStore, error) {
	if conn == nil {
		return nil, errors.New("ledger database not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("ledger key is empty")
	}
	return &SQLStore{db: conn, key: key}, nil
}

func (s *SQLStore) Load(ctx context.Context) ([]byte, error) {
	data, _, err := s.LoadVersion(ctx)
	return data, err
}

func (s *SQLStore) LoadVersion(ctx context.Context) ([]byte, uint64, error) {
	var row PoolLedger
	err := s.db.WithContext(ctx).Raw(
		`SELECT ledger_key, version, payload, updated_at
		 FROM pool_ledgers WHERE ledger_key = ?`,
		s.key,
	).Scan(&row).Error
	if err != nil {
		return nil, 0, err
	}
	if row.LedgerKey == "" {
		return nil, 0, nil
	}
	return []byte(row.Payload), row.Version, nil
}

func (s *SQLStore) Save(ctx context.Context, data []byte) error {
	now := time.Now().UTC()
	row := PoolLedger{
		LedgerKey: s.key,
		Version:   1,
		Payload:   datatypes.JSON(data),
		UpdatedAt: now,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ledger_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"payload":    datatypes.JSON(data),
			"updated_at": now,
			"version":    gorm.Expr("pool_ledgers.version + 1"),
		}),
	}).Create(&row).Error
}

func (s *SQLStore) CompareAndSave(ctx context.Context, data []byte, expected uint64) (uint64, error) {
	now := time.Now().UTC()

	if expected == 0 {
		row := PoolLedger{
			LedgerKey: s.key,
			Version:   1,
			Payload:   datatypes.JSON(data),
			UpdatedAt: now,
		}
		result := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row)
		if result.Error != nil {
			if db.IsDuplicateKeyErr(result.Error) {
				return 0, pooldomain.ErrVersionConflict
			}
			return 0, result.Error
		}
		if result.RowsAffected == 0 {
			return 0, pooldomain.ErrVersionConflict
		}
		return 1, nil
	}

	result := s.db.WithContext(ctx).Exec(
		`UPDATE pool_ledgers
		 SET payload = ?, version = version + 1, updated_at = ?
		 WHERE ledger_key = ? AND version = ?`,
		datatypes.JSON(data),
		now,
		s.key,
		expected,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, pooldomain.ErrVersionConflict
	}
	return expected + 1, nil
}
