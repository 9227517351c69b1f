package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

const collectionProgress = "upload_progress"

// ProgressAdapter implements out.ProgressRepository using MongoDB.
type ProgressAdapter struct {
	collection *mongo.Collection
}

var _ out.ProgressRepository = (*ProgressAdapter)(nil)

func NewProgressAdapter(db *mongo.Database) *ProgressAdapter {
	return &ProgressAdapter{collection: db.Collection(collectionProgress)}
}

// EnsureIndexes creates the indexes backing status filters and
// recency-ordered job listings.
func (a *ProgressAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

type progressDocument struct {
	ID            string    `bson:"_id"`
	Filename      string    `bson:"filename"`
	Status        string    `bson:"status"`
	TotalRows     int       `bson:"total_rows"`
	ProcessedRows int       `bson:"processed_rows"`
	ErrorCount    int       `bson:"error_count"`
	ErrorMessage  string    `bson:"error_message,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func toProgressDocument(p *domain.UploadProgress) *progressDocument {
	return &progressDocument{
		ID:            p.ID,
		Filename:      p.Filename,
		Status:        string(p.Status),
		TotalRows:     p.TotalRows,
		ProcessedRows: p.ProcessedRows,
		ErrorCount:    p.ErrorCount,
		ErrorMessage:  p.ErrorMessage,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toProgressEntity(doc *progressDocument) *domain.UploadProgress {
	return &domain.UploadProgress{
		ID:            doc.ID,
		Filename:      doc.Filename,
		Status:        domain.UploadStatus(doc.Status),
		TotalRows:     doc.TotalRows,
		ProcessedRows: doc.ProcessedRows,
		ErrorCount:    doc.ErrorCount,
		ErrorMessage:  doc.ErrorMessage,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

func (a *ProgressAdapter) Save(ctx context.Context, progress *domain.UploadProgress) error {
	opts := options.Replace().SetUpsert(true)
	_, err := a.collection.ReplaceOne(ctx, bson.M{"_id": progress.ID}, toProgressDocument(progress), opts)
	return err
}

func (a *ProgressAdapter) GetByID(ctx context.Context, id string) (*domain.UploadProgress, error) {
	var doc progressDocument
	err := a.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toProgressEntity(&doc), nil
}

func (a *ProgressAdapter) SetTotal(ctx context.Context, id string, total int) error {
	return a.setFields(ctx, id, bson.M{"total_rows": total})
}

func (a *ProgressAdapter) UpdateCounts(ctx context.Context, id string, processed, errorCount int) error {
	return a.setFields(ctx, id, bson.M{
		"processed_rows": processed,
		"error_count":    errorCount,
	})
}

func (a *ProgressAdapter) MarkCompleted(ctx context.Context, id string, processed, errorCount int) error {
	return a.setFields(ctx, id, bson.M{
		"status":         string(domain.UploadCompleted),
		"processed_rows": processed,
		"error_count":    errorCount,
	})
}

func (a *ProgressAdapter) MarkFailed(ctx context.Context, id string, message string) error {
	return a.setFields(ctx, id, bson.M{
		"status":        string(domain.UploadFailed),
		"error_message": message,
	})
}

func (a *ProgressAdapter) setFields(ctx context.Context, id string, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	result, err := a.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
