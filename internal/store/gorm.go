package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/common"
	"github.com/freightdocs/bol-pipeline/internal/entity"
)

// documentRow is the persisted shape. Structured payloads are stored as
// JSON blobs; the store never interprets them.
type documentRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Filename    string `gorm:"not null"`
	FileSize    int64
	ContentType string
	UploadedAt  time.Time `gorm:"index"`

	Status             string `gorm:"index;not null"`
	ProcessedAt        *time.Time
	Confidence         *float64
	ExtractedData      []byte `gorm:"type:blob"`
	ValidationIssues   []byte `gorm:"type:blob"`
	ProcessingErrors   []byte `gorm:"type:blob"`
	ProcessingProgress int
	ProcessingStage    string
	Generation         uint64
}

func (documentRow) TableName() string { return "documents" }

// GormStore persists documents in SQLite through gorm. Update runs the
// mutation inside a transaction so completions race on the database,
// not on stale in-memory copies.
type GormStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewGormStore(path string, logger *slog.Logger) (*GormStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("migrate documents table: %w", err)
	}
	logger.Info("sqlite store ready", "path", path)
	return &GormStore{db: db, logger: logger}, nil
}

func (s *GormStore) Create(ctx context.Context, doc *entity.Document) (*entity.Document, error) {
	cp := doc.Clone()
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.UploadedAt.IsZero() {
		cp.UploadedAt = time.Now().UTC()
	}
	if cp.Status == "" {
		cp.Status = constants.StatusProcessing
	}
	if cp.Generation == 0 {
		cp.Generation = 1
	}
	row, err := toRow(cp)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return cp, nil
}

func (s *GormStore) Get(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return toEntity(&row)
}

func (s *GormStore) ListAll(ctx context.Context) ([]*entity.Document, error) {
	return s.list(ctx, s.db.WithContext(ctx))
}

func (s *GormStore) ListByStatus(ctx context.Context, status constants.DocStatus) ([]*entity.Document, error) {
	return s.list(ctx, s.db.WithContext(ctx).Where("status = ?", string(status)))
}

func (s *GormStore) list(_ context.Context, q *gorm.DB) ([]*entity.Document, error) {
	var rows []documentRow
	if err := q.Order("uploaded_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]*entity.Document, 0, len(rows))
	for i := range rows {
		doc, err := toEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *GormStore) Update(ctx context.Context, id uuid.UUID, mutate func(*entity.Document) error) (*entity.Document, error) {
	var updated *entity.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row documentRow
		if err := tx.First(&row, "id = ?", id.String()).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.ErrNotFound
			}
			return fmt.Errorf("load document: %w", err)
		}
		doc, err := toEntity(&row)
		if err != nil {
			return err
		}
		if err := mutate(doc); err != nil {
			return err
		}
		doc.ID = id
		next, err := toRow(doc)
		if err != nil {
			return err
		}
		next.UploadedAt = row.UploadedAt
		if err := tx.Save(next).Error; err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		updated = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *GormStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&documentRow{}, "id = ?", id.String())
	if res.Error != nil {
		return false, fmt.Errorf("delete document: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func toRow(doc *entity.Document) (*documentRow, error) {
	row := &documentRow{
		ID:                 doc.ID.String(),
		Filename:           doc.Filename,
		FileSize:           doc.FileSize,
		ContentType:        doc.ContentType,
		UploadedAt:         doc.UploadedAt,
		Status:             string(doc.Status),
		ProcessedAt:        doc.ProcessedAt,
		Confidence:         doc.Confidence,
		ProcessingProgress: doc.ProcessingProgress,
		ProcessingStage:    string(doc.ProcessingStage),
		Generation:         doc.Generation,
	}
	var err error
	if row.ExtractedData, err = marshalOrNil(doc.ExtractedData); err != nil {
		return nil, err
	}
	if row.ValidationIssues, err = marshalOrNil(doc.ValidationIssues); err != nil {
		return nil, err
	}
	if row.ProcessingErrors, err = marshalOrNil(doc.ProcessingErrors); err != nil {
		return nil, err
	}
	return row, nil
}

func toEntity(row *documentRow) (*entity.Document, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("parse document id %q: %w", row.ID, err)
	}
	doc := &entity.Document{
		ID:                 id,
		Filename:           row.Filename,
		FileSize:           row.FileSize,
		ContentType:        row.ContentType,
		UploadedAt:         row.UploadedAt,
		Status:             constants.DocStatus(row.Status),
		ProcessedAt:        row.ProcessedAt,
		Confidence:         row.Confidence,
		ProcessingProgress: row.ProcessingProgress,
		ProcessingStage:    constants.Stage(row.ProcessingStage),
		Generation:         row.Generation,
	}
	if len(row.ExtractedData) > 0 {
		doc.ExtractedData = &entity.BOLRecord{}
		if err := json.Unmarshal(row.ExtractedData, doc.ExtractedData); err != nil {
			return nil, fmt.Errorf("decode extracted data: %w", err)
		}
	}
	if len(row.ValidationIssues) > 0 {
		if err := json.Unmarshal(row.ValidationIssues, &doc.ValidationIssues); err != nil {
			return nil, fmt.Errorf("decode validation issues: %w", err)
		}
	}
	if len(row.ProcessingErrors) > 0 {
		if err := json.Unmarshal(row.ProcessingErrors, &doc.ProcessingErrors); err != nil {
			return nil, fmt.Errorf("decode processing errors: %w", err)
		}
	}
	return doc, nil
}

func marshalOrNil(v any) ([]byte, error) {
	switch t := v.(type) {
	case *entity.BOLRecord:
		if t == nil {
			return nil, nil
		}
	case []entity.ValidationIssue:
		if len(t) == 0 {
			return nil, nil
		}
	case []entity.ProcessingError:
		if len(t) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}
