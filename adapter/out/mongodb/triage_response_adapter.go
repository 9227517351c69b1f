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

const collectionResponses = "responses"

// ResponseAdapter implements out.ResponseRepository using MongoDB.
type ResponseAdapter struct {
	collection *mongo.Collection
}

var _ out.ResponseRepository = (*ResponseAdapter)(nil)

func NewResponseAdapter(db *mongo.Database) *ResponseAdapter {
	return &ResponseAdapter{collection: db.Collection(collectionResponses)}
}

func (a *ResponseAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

type responseDocument struct {
	ID           string     `bson:"_id"`
	EmailID      string     `bson:"email_id"`
	Recipient    string     `bson:"recipient"`
	Subject      string     `bson:"subject"`
	ResponseText string     `bson:"response_text"`
	Priority     string     `bson:"priority"`
	Status       string     `bson:"status"`
	ApprovedBy   string     `bson:"approved_by,omitempty"`
	ApprovedAt   *time.Time `bson:"approved_at,omitempty"`
	SentAt       *time.Time `bson:"sent_at,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func toResponseDocument(r *domain.DraftResponse) *responseDocument {
	return &responseDocument{
		ID:           r.ID,
		EmailID:      r.EmailID,
		Recipient:    r.Recipient,
		Subject:      r.Subject,
		ResponseText: r.ResponseText,
		Priority:     string(r.Priority),
		Status:       string(r.Status),
		ApprovedBy:   r.ApprovedBy,
		ApprovedAt:   r.ApprovedAt,
		SentAt:       r.SentAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toResponseEntity(doc *responseDocument) *domain.DraftResponse {
	return &domain.DraftResponse{
		ID:           doc.ID,
		EmailID:      doc.EmailID,
		Recipient:    doc.Recipient,
		Subject:      doc.Subject,
		ResponseText: doc.ResponseText,
		Priority:     domain.Priority(doc.Priority),
		Status:       domain.ResponseStatus(doc.Status),
		ApprovedBy:   doc.ApprovedBy,
		ApprovedAt:   doc.ApprovedAt,
		SentAt:       doc.SentAt,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

func (a *ResponseAdapter) Save(ctx context.Context, response *domain.DraftResponse) error {
	opts := options.Replace().SetUpsert(true)
	_, err := a.collection.ReplaceOne(ctx, bson.M{"_id": response.ID}, toResponseDocument(response), opts)
	return err
}

func (a *ResponseAdapter) GetByID(ctx context.Context, id string) (*domain.DraftResponse, error) {
	var doc responseDocument
	err := a.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toResponseEntity(&doc), nil
}

func (a *ResponseAdapter) List(ctx context.Context, status domain.ResponseStatus, offset, limit int) ([]*domain.DraftResponse, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}

	total, err := a.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var responses []*domain.DraftResponse
	for cursor.Next(ctx) {
		var doc responseDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, err
		}
		responses = append(responses, toResponseEntity(&doc))
	}
	return responses, total, cursor.Err()
}

// ApplyIfStatus performs a compare-and-set transition: the update lands
// only when the stored status still equals currentStatus. Returns false
// when the record was already moved by a concurrent request.
func (a *ResponseAdapter) ApplyIfStatus(ctx context.Context, id string, currentStatus domain.ResponseStatus, update out.ResponseUpdate) (bool, error) {
	set := bson.M{
		"status":     string(update.Status),
		"updated_at": time.Now().UTC(),
	}
	if update.ResponseText != nil {
		set["response_text"] = *update.ResponseText
	}
	if update.ApprovedBy != nil {
		set["approved_by"] = *update.ApprovedBy
	}
	if update.ApprovedAt != nil {
		set["approved_at"] = *update.ApprovedAt
	}
	if update.SentAt != nil {
		set["sent_at"] = *update.SentAt
	}

	filter := bson.M{"_id": id, "status": string(currentStatus)}
	result, err := a.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (a *ResponseAdapter) StatusCounts(ctx context.Context) (map[domain.ResponseStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := a.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[domain.ResponseStatus]int64, len(rows))
	for _, row := range rows {
		counts[domain.ResponseStatus(row.ID)] = row.Count
	}
	return counts, nil
}
