// Package mongostore persists conversations in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zhouzirui/loan-coach/backend/internal/model/conversation"
)

// document mirrors conversation.Conversation with a native ObjectID key.
type document struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty"`
	UserID      string                 `bson:"userId"`
	Scenario    string                 `bson:"scenario"`
	Messages    []conversation.Message `bson:"messages"`
	IsCompleted bool                   `bson:"isCompleted"`
	IsTemporary bool                   `bson:"isTemporary"`
	CreatedAt   time.Time              `bson:"createdAt"`
	CompletedAt *time.Time             `bson:"completedAt,omitempty"`
	Feedback    *conversation.Feedback `bson:"feedback,omitempty"`
}

func fromConversation(c *conversation.Conversation) document {
	return document{
		UserID:      c.UserID,
		Scenario:    c.Scenario,
		Messages:    c.Messages,
		IsCompleted: c.IsCompleted,
		IsTemporary: c.IsTemporary,
		CreatedAt:   c.CreatedAt,
		CompletedAt: c.CompletedAt,
		Feedback:    c.Feedback,
	}
}

func (d document) toConversation() *conversation.Conversation {
	return &conversation.Conversation{
		ID:          d.ID.Hex(),
		UserID:      d.UserID,
		Scenario:    d.Scenario,
		Messages:    d.Messages,
		IsCompleted: d.IsCompleted,
		IsTemporary: d.IsTemporary,
		CreatedAt:   d.CreatedAt,
		CompletedAt: d.CompletedAt,
		Feedback:    d.Feedback,
	}
}

// Store implements conversation.Store on a MongoDB collection.
type Store struct {
	coll *mongo.Collection
}

// New wraps the given collection.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// EnsureIndexes creates the index backing history and cleanup queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "isTemporary", Value: 1},
			{Key: "isCompleted", Value: 1},
			{Key: "createdAt", Value: -1},
		},
		Options: options.Index().SetName("user_history"),
	})
	if err != nil {
		return fmt.Errorf("create history index: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, c *conversation.Conversation) error {
	if err := conversation.Validate(c); err != nil {
		return err
	}

	doc := fromConversation(c)
	doc.ID = primitive.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	c.ID = doc.ID.Hex()
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, conversation.ErrNotFound
	}

	var doc document
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, conversation.ErrNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return doc.toConversation(), nil
}

// Save writes the mutable fields of c. Feedback keys are set one by one so
// keys this service does not know about survive.
func (s *Store) Save(ctx context.Context, c *conversation.Conversation) error {
	if err := conversation.Validate(c); err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(c.ID)
	if err != nil {
		return conversation.ErrNotFound
	}

	set := bson.M{
		"messages":    c.Messages,
		"isCompleted": c.IsCompleted,
		"isTemporary": c.IsTemporary,
	}
	if c.CompletedAt != nil {
		set["completedAt"] = *c.CompletedAt
	}
	if fb := c.Feedback; fb != nil {
		set["feedback.score"] = fb.Score
		set["feedback.comments"] = fb.Comments
		set["feedback.suggestions"] = fb.Suggestions
		set["feedback.areasForImprovement"] = fb.AreasForImprovement
		set["feedback.detailedSuggestions"] = fb.DetailedSuggestions
		set["feedback.strengths"] = fb.Strengths
		if !fb.AnalyzedAt.IsZero() {
			set["feedback.analyzedAt"] = fb.AnalyzedAt
		}
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTemporary(ctx context.Context, userID, keepID string) (int64, error) {
	filter := bson.M{"userId": userID, "isTemporary": true}
	if oid, err := primitive.ObjectIDFromHex(keepID); err == nil {
		filter["_id"] = bson.M{"$ne": oid}
	}

	res, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete temporary conversations: %w", err)
	}
	return res.DeletedCount, nil
}

func historyFilter(userID string) bson.M {
	return bson.M{"userId": userID, "isTemporary": false, "isCompleted": true}
}

func (s *Store) CountHistory(ctx context.Context, userID string) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, historyFilter(userID))
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

func (s *Store) ListHistory(ctx context.Context, userID string, skip, limit int) ([]conversation.Summary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"scenario": 1, "isCompleted": 1, "createdAt": 1, "completedAt": 1}).
		SetSkip(int64(skip))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, historyFilter(userID), opts)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	out := make([]conversation.Summary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toConversation().Summarize())
	}
	return out, nil
}
