package mongodb

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

const collectionEmails = "emails"

// EmailAdapter implements out.EmailRepository using MongoDB.
type EmailAdapter struct {
	collection *mongo.Collection
}

var _ out.EmailRepository = (*EmailAdapter)(nil)

func NewEmailAdapter(db *mongo.Database) *EmailAdapter {
	return &EmailAdapter{collection: db.Collection(collectionEmails)}
}

// EnsureIndexes creates the indexes backing filter queries, dedupe
// lookups, and the semantic candidate scan.
func (a *EmailAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "priority", Value: 1}}},
		{Keys: bson.D{{Key: "sentiment", Value: 1}}},
		{Keys: bson.D{{Key: "classification", Value: 1}}},
		{Keys: bson.D{{Key: "filtered", Value: 1}}},
		{Keys: bson.D{{Key: "metadata.date_epoch", Value: -1}}},
		{
			Keys:    bson.D{{Key: "metadata.source_message_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Document model

type otherDetailsDocument struct {
	PhoneNumber    string `bson:"phone_number,omitempty"`
	Address        string `bson:"address,omitempty"`
	AlternateEmail string `bson:"alternate_email,omitempty"`
}

type emailMetadataDocument struct {
	Date            string `bson:"date,omitempty"`
	DateEpoch       int64  `bson:"date_epoch,omitempty"`
	SourceMessageID string `bson:"source_message_id,omitempty"`
}

type embeddingsDocument struct {
	Vector []float64 `bson:"vector"`
	Model  string    `bson:"model"`
	Dim    int       `bson:"dim"`
	Text   string    `bson:"text"`
}

type emailDocument struct {
	ID                 string                `bson:"_id"`
	Sender             string                `bson:"sender"`
	Subject            string                `bson:"subject"`
	Body               string                `bson:"body"`
	Filtered           bool                  `bson:"filtered"`
	Priority           string                `bson:"priority"`
	Classification     string                `bson:"classification"`
	Sentiment          string                `bson:"sentiment"`
	Summary            string                `bson:"summary,omitempty"`
	SuggestedResponses []string              `bson:"suggested_responses,omitempty"`
	OtherDetails       otherDetailsDocument  `bson:"other_details,omitempty"`
	Metadata           emailMetadataDocument `bson:"metadata,omitempty"`
	Embeddings         *embeddingsDocument   `bson:"embeddings,omitempty"`
	CreatedAt          time.Time             `bson:"created_at"`
	UpdatedAt          time.Time             `bson:"updated_at"`
}

func toEmailDocument(e *domain.EmailRecord) *emailDocument {
	doc := &emailDocument{
		ID:                 e.ID,
		Sender:             e.Sender,
		Subject:            e.Subject,
		Body:               e.Body,
		Filtered:           e.Filtered,
		Priority:           string(e.Priority),
		Classification:     string(e.Classification),
		Sentiment:          string(e.Sentiment),
		Summary:            e.Summary,
		SuggestedResponses: e.SuggestedResponses,
		OtherDetails: otherDetailsDocument{
			PhoneNumber:    e.OtherDetails.PhoneNumber,
			Address:        e.OtherDetails.Address,
			AlternateEmail: e.OtherDetails.AlternateEmail,
		},
		Metadata: emailMetadataDocument{
			Date:            e.Metadata.Date,
			DateEpoch:       e.Metadata.DateEpoch,
			SourceMessageID: e.Metadata.SourceMessageID,
		},
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.Embeddings != nil {
		doc.Embeddings = &embeddingsDocument{
			Vector: e.Embeddings.Vector,
			Model:  e.Embeddings.Model,
			Dim:    e.Embeddings.Dim,
			Text:   e.Embeddings.Text,
		}
	}
	return doc
}

func toEmailEntity(doc *emailDocument) *domain.EmailRecord {
	e := &domain.EmailRecord{
		ID:                 doc.ID,
		Sender:             doc.Sender,
		Subject:            doc.Subject,
		Body:               doc.Body,
		Filtered:           doc.Filtered,
		Priority:           domain.Priority(doc.Priority),
		Classification:     domain.Classification(doc.Classification),
		Sentiment:          domain.Sentiment(doc.Sentiment),
		Summary:            doc.Summary,
		SuggestedResponses: doc.SuggestedResponses,
		OtherDetails: domain.OtherDetails{
			PhoneNumber:    doc.OtherDetails.PhoneNumber,
			Address:        doc.OtherDetails.Address,
			AlternateEmail: doc.OtherDetails.AlternateEmail,
		},
		Metadata: domain.EmailMetadata{
			Date:            doc.Metadata.Date,
			DateEpoch:       doc.Metadata.DateEpoch,
			SourceMessageID: doc.Metadata.SourceMessageID,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if doc.Embeddings != nil {
		e.Embeddings = &domain.Embeddings{
			Vector: doc.Embeddings.Vector,
			Model:  doc.Embeddings.Model,
			Dim:    doc.Embeddings.Dim,
			Text:   doc.Embeddings.Text,
		}
	}
	return e
}

// Operations

func (a *EmailAdapter) Save(ctx context.Context, email *domain.EmailRecord) error {
	opts := options.Replace().SetUpsert(true)
	_, err := a.collection.ReplaceOne(ctx, bson.M{"_id": email.ID}, toEmailDocument(email), opts)
	return err
}

func (a *EmailAdapter) GetByID(ctx context.Context, id string) (*domain.EmailRecord, error) {
	var doc emailDocument
	err := a.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toEmailEntity(&doc), nil
}

// Find runs a filter/text query, newest first by original send date, and
// returns the page plus the unpaginated total.
func (a *EmailAdapter) Find(ctx context.Context, query out.EmailQuery) ([]*domain.EmailRecord, int64, error) {
	filter := buildEmailFilter(query)

	total, err := a.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "metadata.date_epoch", Value: -1}, {Key: "created_at", Value: -1}}).
		SetSkip(int64(query.Offset)).
		SetLimit(int64(query.Limit))

	cursor, err := a.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var emails []*domain.EmailRecord
	for cursor.Next(ctx) {
		var doc emailDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, err
		}
		emails = append(emails, toEmailEntity(&doc))
	}
	return emails, total, cursor.Err()
}

// buildEmailFilter composes field $in clauses, a case-insensitive text
// OR-group, and a sender OR-group, AND-combined.
func buildEmailFilter(query out.EmailQuery) bson.M {
	var clauses []bson.M

	if len(query.Filters.Priority) > 0 {
		clauses = append(clauses, bson.M{"priority": bson.M{"$in": query.Filters.Priority}})
	}
	if len(query.Filters.Sentiment) > 0 {
		clauses = append(clauses, bson.M{"sentiment": bson.M{"$in": query.Filters.Sentiment}})
	}
	if len(query.Filters.Classification) > 0 {
		clauses = append(clauses, bson.M{"classification": bson.M{"$in": query.Filters.Classification}})
	}
	if query.Filters.Filtered != nil {
		clauses = append(clauses, bson.M{"filtered": *query.Filters.Filtered})
	}

	if len(query.TextTerms) > 0 {
		var textOr []bson.M
		for _, term := range query.TextTerms {
			re := regexp.QuoteMeta(term)
			for _, field := range []string{"sender", "subject", "body", "classification"} {
				textOr = append(textOr, bson.M{field: bson.M{"$regex": re, "$options": "i"}})
			}
		}
		clauses = append(clauses, bson.M{"$or": textOr})
	}

	if len(query.SenderFilters) > 0 {
		var senderOr []bson.M
		for _, s := range query.SenderFilters {
			senderOr = append(senderOr, bson.M{"sender": bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}})
		}
		clauses = append(clauses, bson.M{"$or": senderOr})
	}

	switch len(clauses) {
	case 0:
		return bson.M{}
	case 1:
		return clauses[0]
	default:
		return bson.M{"$and": clauses}
	}
}

func (a *EmailAdapter) RecentWithEmbeddings(ctx context.Context, limit int) ([]*domain.EmailRecord, error) {
	filter := bson.M{"embeddings.vector.0": bson.M{"$exists": true}}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var emails []*domain.EmailRecord
	for cursor.Next(ctx) {
		var doc emailDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		emails = append(emails, toEmailEntity(&doc))
	}
	return emails, cursor.Err()
}

func (a *EmailAdapter) ExistsBySourceMessageID(ctx context.Context, sourceMessageID string) (bool, error) {
	if sourceMessageID == "" {
		return false, nil
	}
	count, err := a.collection.CountDocuments(ctx,
		bson.M{"metadata.source_message_id": sourceMessageID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a *EmailAdapter) SetEmbeddings(ctx context.Context, id string, emb *domain.Embeddings) error {
	update := bson.M{"$set": bson.M{
		"embeddings": &embeddingsDocument{
			Vector: emb.Vector,
			Model:  emb.Model,
			Dim:    emb.Dim,
			Text:   emb.Text,
		},
		"updated_at": time.Now().UTC(),
	}}
	result, err := a.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Stats aggregates record counts per classified field.
func (a *EmailAdapter) Stats(ctx context.Context) (*out.EmailStats, error) {
	stats := &out.EmailStats{
		ByPriority:       make(map[domain.Priority]int64),
		BySentiment:      make(map[domain.Sentiment]int64),
		ByClassification: make(map[domain.Classification]int64),
	}

	total, err := a.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	stats.Total = total

	filtered, err := a.collection.CountDocuments(ctx, bson.M{"filtered": true})
	if err != nil {
		return nil, err
	}
	stats.Filtered = filtered

	for _, group := range []struct {
		field  string
		assign func(key string, count int64)
	}{
		{"priority", func(k string, c int64) { stats.ByPriority[domain.Priority(k)] = c }},
		{"sentiment", func(k string, c int64) { stats.BySentiment[domain.Sentiment(k)] = c }},
		{"classification", func(k string, c int64) { stats.ByClassification[domain.Classification(k)] = c }},
	} {
		pipeline := mongo.Pipeline{
			{{Key: "$group", Value: bson.M{"_id": "$" + group.field, "count": bson.M{"$sum": 1}}}},
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
		for _, row := range rows {
			group.assign(row.ID, row.Count)
		}
	}

	return stats, nil
}
