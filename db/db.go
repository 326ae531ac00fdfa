package db

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"sparhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var MongoClient *mongo.Client

// extractDBName parses the database name from the URI, defaulting to "sparhub"
func extractDBName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "sparhub"
	}
	if u.Path != "" && u.Path != "/" {
		return u.Path[1:]
	}
	return "sparhub"
}

// ConnectMongoDB establishes a connection to MongoDB and returns a store
// bound to the database named in the URI.
func ConnectMongoDB(uri string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	MongoClient = client
	dbName := extractDBName(uri)
	log.Printf("Using database: %s", dbName)

	store := &MongoStore{
		sessions:     client.Database(dbName).Collection("sessions"),
		counterparts: client.Database(dbName).Collection("counterparts"),
		knowledge:    client.Database(dbName).Collection("curated_knowledge"),
	}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// MongoStore is the durable backing for sessions, the counterpart catalog
// and curated knowledge.
type MongoStore struct {
	sessions     *mongo.Collection
	counterparts *mongo.Collection
	knowledge    *mongo.Collection
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "publicToken", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "participantId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "completed", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertSession(ctx context.Context, sess *models.Session) error {
	_, err := s.sessions.InsertOne(ctx, sess)
	return err
}

func (s *MongoStore) FindSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	var sess models.Session
	err := s.sessions.FindOne(ctx, bson.M{"publicToken": token}).Decode(&sess)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &sess, nil
}

// ReplaceSession writes back the full session document. Callers hold the
// per-session mutation lock, so a full replace cannot lose concurrent writes.
func (s *MongoStore) ReplaceSession(ctx context.Context, sess *models.Session) error {
	result, err := s.sessions.ReplaceOne(ctx, bson.M{"publicToken": sess.PublicToken}, sess)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("session %s not found for replace", sess.PublicToken)
	}
	return nil
}

func (s *MongoStore) ListOpenSessions(ctx context.Context) ([]models.Session, error) {
	cursor, err := s.sessions.Find(ctx, bson.M{"completed": false})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *MongoStore) ListSessionsByParticipant(ctx context.Context, participantID string, limit int) ([]models.Session, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.sessions.Find(ctx, bson.M{"participantId": participantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *MongoStore) GetCounterpart(ctx context.Context, id string) (*models.Counterpart, error) {
	var cp models.Counterpart
	err := s.counterparts.FindOne(ctx, bson.M{"_id": id}).Decode(&cp)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

func (s *MongoStore) ListCounterparts(ctx context.Context) ([]models.Counterpart, error) {
	cursor, err := s.counterparts.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var cps []models.Counterpart
	if err := cursor.All(ctx, &cps); err != nil {
		return nil, err
	}
	return cps, nil
}

// UpsertCounterpart is used by catalog seeding at startup.
func (s *MongoStore) UpsertCounterpart(ctx context.Context, cp models.Counterpart) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.counterparts.ReplaceOne(ctx, bson.M{"_id": cp.ID}, cp, opts)
	return err
}

// KnowledgeForCounterpart concatenates the curated reference entries for a
// counterpart into a single context block for the generator.
func (s *MongoStore) KnowledgeForCounterpart(ctx context.Context, counterpartID string) (string, error) {
	cursor, err := s.knowledge.Find(ctx, bson.M{"counterpartId": counterpartID})
	if err != nil {
		return "", err
	}
	defer cursor.Close(ctx)

	var entries []models.CuratedKnowledge
	if err := cursor.All(ctx, &entries); err != nil {
		return "", err
	}

	combined := ""
	for _, e := range entries {
		if combined != "" {
			combined += "\n\n"
		}
		if e.Title != "" {
			combined += e.Title + ": "
		}
		combined += e.Content
	}
	return combined, nil
}
