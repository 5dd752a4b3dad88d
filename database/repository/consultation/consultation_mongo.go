package consultationRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"consultly/database/repository"
	"consultly/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultListLimit = 50

// MongoConsultationRepo implements ConsultationRepository using MongoDB.
type MongoConsultationRepo struct {
	coll *mongo.Collection
}

// NewMongoConsultationRepo creates the repository and makes sure its indexes exist.
func NewMongoConsultationRepo(db *mongo.Database) (*MongoConsultationRepo, error) {
	repo := &MongoConsultationRepo{coll: db.Collection("consultations")}
	if err := repo.ensureIndexes(); err != nil {
		return nil, err
	}
	return repo, nil
}

func newContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

func (r *MongoConsultationRepo) ensureIndexes() error {
	ctx, cancel := newContext(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "paymentIntentId", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"paymentIntentId": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "clientId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "consultantId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create consultation indexes: %w", err)
	}
	return nil
}

func (r *MongoConsultationRepo) Save(ctx context.Context, c *models.Consultation) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	if c.Version == 0 {
		return r.insert(ctx, c)
	}

	fields, err := mutableFields(c)
	if err != nil {
		return err
	}
	fields["version"] = c.Version + 1

	update := bson.M{"$set": fields}
	if tail := c.UncommittedHistory(); len(tail) > 0 {
		update["$push"] = bson.M{"statusHistory": bson.M{"$each": tail}}
	}
	filter := bson.M{
		"id":            c.ID,
		"version":       c.Version,
		"statusHistory": bson.M{"$size": c.CommittedHistoryLen()},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update consultation %s: %w", c.ID, err)
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"id": c.ID})
		if err != nil {
			return fmt.Errorf("failed to check consultation %s: %w", c.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("consultation %s: %w", c.ID, repository.ErrNotFound)
		}
		return fmt.Errorf("consultation %s at version %d: %w", c.ID, c.Version, repository.ErrVersionConflict)
	}

	c.Version++
	c.MarkPersisted()
	return nil
}

func (r *MongoConsultationRepo) insert(ctx context.Context, c *models.Consultation) error {
	c.Version = 1
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		c.Version = 0
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("consultation %s already exists: %w", c.ID, repository.ErrVersionConflict)
		}
		return fmt.Errorf("failed to create consultation: %w", err)
	}
	c.MarkPersisted()
	return nil
}

// mutableFields renders everything but the id, version and history as a $set document.
func mutableFields(c *models.Consultation) (bson.M, error) {
	raw, err := bson.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode consultation %s: %w", c.ID, err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode consultation %s: %w", c.ID, err)
	}
	delete(doc, "id")
	delete(doc, "version")
	delete(doc, "statusHistory")
	return doc, nil
}

func (r *MongoConsultationRepo) findOne(ctx context.Context, filter bson.M) (*models.Consultation, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var c models.Consultation
	if err := r.coll.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch consultation: %w", err)
	}
	c.MarkPersisted()
	return &c, nil
}

func (r *MongoConsultationRepo) FindByID(ctx context.Context, id string) (*models.Consultation, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

func (r *MongoConsultationRepo) FindByPaymentIntent(ctx context.Context, intentID string) (*models.Consultation, error) {
	if intentID == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"paymentIntentId": intentID})
}

// ListByParticipant returns the actor's consultations, newest first.
func (r *MongoConsultationRepo) ListByParticipant(ctx context.Context, actor models.Actor, limit int64) ([]models.Consultation, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	filter, err := participantFilter(actor)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	defer cursor.Close(ctx)

	consultations := []models.Consultation{}
	if err := cursor.All(ctx, &consultations); err != nil {
		return nil, fmt.Errorf("failed to decode consultations: %w", err)
	}
	for i := range consultations {
		consultations[i].MarkPersisted()
	}
	return consultations, nil
}

func participantFilter(actor models.Actor) (bson.M, error) {
	switch actor.Role {
	case models.RoleClient:
		return bson.M{"clientId": actor.ID}, nil
	case models.RoleConsultant:
		return bson.M{"consultantId": actor.ID}, nil
	}
	return nil, fmt.Errorf("role %q has no consultations of its own", actor.Role)
}
