// Package mongostore implements the repository interfaces on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cycleworks/internal/domain"
	"cycleworks/internal/repository"
)

const (
	usersCollection    = "users"
	productsCollection = "products"
	ordersCollection   = "orders"
	reviewsCollection  = "reviews"
	paymentsCollection = "payment"
)

// Connect opens a client with the stable server API and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return client, fmt.Errorf("failed to ping mongo: %w", err)
	}
	slog.Info("Mongo connected")
	return client, nil
}

// EnsureIndexes creates the unique indexes the user upsert and the payment
// journal rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users email index: %w", err)
	}
	_, err = db.Collection(paymentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "transactionId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create payment transaction index: %w", err)
	}
	return nil
}

// New returns repositories backed by the collections of db.
func New(db *mongo.Database) repository.Store {
	return repository.Store{
		Users:    &userRepository{c: db.Collection(usersCollection)},
		Products: &productRepository{c: db.Collection(productsCollection)},
		Orders:   &orderRepository{c: db.Collection(ordersCollection)},
		Reviews:  &reviewRepository{c: db.Collection(reviewsCollection)},
		Payments: &paymentRepository{c: db.Collection(paymentsCollection)},
	}
}

type userRepository struct{ c *mongo.Collection }

func (r *userRepository) Upsert(ctx context.Context, email string, profile domain.UserProfile) (domain.WriteResult, error) {
	update := bson.M{
		"$setOnInsert": bson.M{"email": email, "role": domain.RoleUser},
	}
	// an empty $set is rejected by the server
	if set := profileFields(profile); len(set) > 0 {
		update["$set"] = set
	}
	res, err := r.c.UpdateOne(ctx, bson.M{"email": email}, update, options.Update().SetUpsert(true))
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return updateResult(res), nil
}

func profileFields(p domain.UserProfile) bson.M {
	set := bson.M{}
	if p.Name != "" {
		set["name"] = p.Name
	}
	if p.Image != "" {
		set["image"] = p.Image
	}
	return set
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.c.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	return findAll[domain.User](ctx, r.c, bson.M{})
}

func (r *userRepository) SetRole(ctx context.Context, email string, role domain.Role) (domain.WriteResult, error) {
	res, err := r.c.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("failed to set user role: %w", err)
	}
	return updateResult(res), nil
}

type productRepository struct{ c *mongo.Collection }

func (r *productRepository) Create(ctx context.Context, p *domain.Product) (domain.WriteResult, error) {
	p.ID = primitive.NilObjectID
	return insertOne(ctx, r.c, p, &p.ID)
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	return findAll[domain.Product](ctx, r.c, bson.M{})
}

func (r *productRepository) Delete(ctx context.Context, id primitive.ObjectID) (domain.WriteResult, error) {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("failed to delete product: %w", err)
	}
	return domain.Deleted(res.DeletedCount), nil
}

type orderRepository struct{ c *mongo.Collection }

func (r *orderRepository) Create(ctx context.Context, o *domain.Order) (domain.WriteResult, error) {
	o.ID = primitive.NilObjectID
	return insertOne(ctx, r.c, o, &o.ID)
}

func (r *orderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return findAll[domain.Order](ctx, r.c, bson.M{})
}

func (r *orderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	var o domain.Order
	err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &o, nil
}

func (r *orderRepository) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return findAll[domain.Order](ctx, r.c, bson.M{"email": email})
}

func (r *orderRepository) MarkPaid(ctx context.Context, id primitive.ObjectID, transactionID string) (domain.WriteResult, error) {
	filter := bson.M{"_id": id, "paid": bson.M{"$ne": true}}
	update := bson.M{"$set": bson.M{"paid": true, "transactionId": transactionID}}
	res, err := r.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("failed to mark order paid: %w", err)
	}
	return updateResult(res), nil
}

type reviewRepository struct{ c *mongo.Collection }

func (r *reviewRepository) Create(ctx context.Context, rv *domain.Review) (domain.WriteResult, error) {
	rv.ID = primitive.NilObjectID
	return insertOne(ctx, r.c, rv, &rv.ID)
}

func (r *reviewRepository) List(ctx context.Context) ([]domain.Review, error) {
	return findAll[domain.Review](ctx, r.c, bson.M{})
}

type paymentRepository struct{ c *mongo.Collection }

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) (domain.WriteResult, error) {
	p.ID = primitive.NilObjectID
	res, err := insertOne(ctx, r.c, p, &p.ID)
	if mongo.IsDuplicateKeyError(err) {
		return domain.WriteResult{}, repository.ErrDuplicate
	}
	return res, err
}

func (r *paymentRepository) FindByTransaction(ctx context.Context, transactionID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.c.FindOne(ctx, bson.M{"transactionId": transactionID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &p, nil
}

func insertOne(ctx context.Context, c *mongo.Collection, doc any, id *primitive.ObjectID) (domain.WriteResult, error) {
	res, err := c.InsertOne(ctx, doc)
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("failed to insert into %s: %w", c.Name(), err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return domain.WriteResult{}, fmt.Errorf("unexpected inserted id type %T in %s", res.InsertedID, c.Name())
	}
	*id = oid
	return domain.Inserted(oid), nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter bson.M) ([]T, error) {
	cur, err := c.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.Name(), err)
	}
	out := make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", c.Name(), err)
	}
	if out == nil {
		out = make([]T, 0)
	}
	return out, nil
}

func updateResult(res *mongo.UpdateResult) domain.WriteResult {
	var upserted *primitive.ObjectID
	if oid, ok := res.UpsertedID.(primitive.ObjectID); ok {
		upserted = &oid
	}
	wr := domain.Updated(res.MatchedCount, res.ModifiedCount, upserted)
	wr.UpsertedCount = &res.UpsertedCount
	return wr
}
