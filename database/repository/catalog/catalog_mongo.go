package catalogRepo

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

// MongoCatalogRepo implements CatalogRepository using MongoDB.
type MongoCatalogRepo struct {
	services    *mongo.Collection
	consultants *mongo.Collection
	clients     *mongo.Collection
}

func NewMongoCatalogRepo(db *mongo.Database) *MongoCatalogRepo {
	return &MongoCatalogRepo{
		services:    db.Collection("services"),
		consultants: db.Collection("consultants"),
		clients:     db.Collection("clients"),
	}
}

func findByID[T any](ctx context.Context, coll *mongo.Collection, id string, opts ...*options.FindOneOptions) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var out T
	if err := coll.FindOne(ctx, bson.M{"id": id}, opts...).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch %s %s: %w", coll.Name(), id, err)
	}
	return &out, nil
}

func (r *MongoCatalogRepo) FindService(ctx context.Context, id string) (*models.ServiceTariff, error) {
	return findByID[models.ServiceTariff](ctx, r.services, id)
}

func (r *MongoCatalogRepo) FindConsultant(ctx context.Context, id string) (*models.Consultant, error) {
	return findByID[models.Consultant](ctx, r.consultants, id)
}

func (r *MongoCatalogRepo) FindClient(ctx context.Context, id string) (*models.Client, error) {
	return findByID[models.Client](ctx, r.clients, id)
}

func (r *MongoCatalogRepo) IncrementConsultationCount(ctx context.Context, clientID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"consultationCount": 1},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	res, err := r.clients.UpdateOne(ctx, bson.M{"id": clientID}, update)
	if err != nil {
		return fmt.Errorf("failed to increment consultation count for %s: %w", clientID, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type tokenDoc struct {
	FCMToken string `bson:"fcmToken"`
}

func (r *MongoCatalogRepo) FCMToken(ctx context.Context, recipient models.Recipient) (string, error) {
	coll := r.clients
	if recipient.Role == models.RoleConsultant {
		coll = r.consultants
	}
	doc, err := findByID[tokenDoc](ctx, coll, recipient.ID, options.FindOne().SetProjection(bson.M{"fcmToken": 1}))
	if err != nil {
		return "", err
	}
	return doc.FCMToken, nil
}
