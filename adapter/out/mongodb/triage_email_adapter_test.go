package mongodb

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

func TestBuildEmailFilter(t *testing.T) {
	filteredFalse := false

	tests := []struct {
		name  string
		query out.EmailQuery
		want  bson.M
	}{
		{
			name:  "empty query matches everything",
			query: out.EmailQuery{},
			want:  bson.M{},
		},
		{
			name: "single filter is not wrapped in $and",
			query: out.EmailQuery{
				Filters: out.EmailFilters{
					Priority: []domain.Priority{domain.PriorityHigh},
				},
			},
			want: bson.M{"priority": bson.M{"$in": []domain.Priority{domain.PriorityHigh}}},
		},
		{
			name: "text terms expand to a regex or-group per field",
			query: out.EmailQuery{
				TextTerms: []string{"refund"},
			},
			want: bson.M{"$or": []bson.M{
				{"sender": bson.M{"$regex": "refund", "$options": "i"}},
				{"subject": bson.M{"$regex": "refund", "$options": "i"}},
				{"body": bson.M{"$regex": "refund", "$options": "i"}},
				{"classification": bson.M{"$regex": "refund", "$options": "i"}},
			}},
		},
		{
			name: "regex metacharacters are escaped",
			query: out.EmailQuery{
				SenderFilters: []string{"a.b+c"},
			},
			want: bson.M{"$or": []bson.M{
				{"sender": bson.M{"$regex": `a\.b\+c`, "$options": "i"}},
			}},
		},
		{
			name: "multiple clauses combine with $and",
			query: out.EmailQuery{
				Filters: out.EmailFilters{
					Sentiment: []domain.Sentiment{domain.SentimentNegative},
					Filtered:  &filteredFalse,
				},
				SenderFilters: []string{"alice"},
			},
			want: bson.M{"$and": []bson.M{
				{"sentiment": bson.M{"$in": []domain.Sentiment{domain.SentimentNegative}}},
				{"filtered": false},
				{"$or": []bson.M{
					{"sender": bson.M{"$regex": "alice", "$options": "i"}},
				}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildEmailFilter(tt.query)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildEmailFilter() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
