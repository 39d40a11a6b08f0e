// Package mongo provides a MongoDB-backed implementation of the
// storage.Storage interface. It is the default backend: students are
// documents in a single collection, ids are ObjectIDs rendered as hex.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aanand-mishra/students-web/internal/config"
	"github.com/aanand-mishra/students-web/internal/storage"
	"github.com/aanand-mishra/students-web/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

// document is the stored shape of a student.
type document struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Name     string             `bson:"name"`
	Age      int                `bson:"age"`
	Email    string             `bson:"email"`
	Bio      string             `bson:"bio"`
	PhotoURL string             `bson:"photoUrl"`
}

func (d document) student() types.Student {
	return types.Student{
		ID:       d.ID.Hex(),
		Name:     d.Name,
		Age:      d.Age,
		Email:    d.Email,
		Bio:      d.Bio,
		PhotoURL: d.PhotoURL,
	}
}

func fromStudent(s types.Student) document {
	return document{
		Name:     s.Name,
		Age:      s.Age,
		Email:    s.Email,
		Bio:      s.Bio,
		PhotoURL: s.PhotoURL,
	}
}

// Mongo is the concrete implementation of storage.Storage.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// New connects to the server in cfg.Storage.Mongo.URI and pings it.
func New(ctx context.Context, cfg *config.Config) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Storage.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo.New: connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.New: ping: %w", err)
	}

	coll := client.Database(cfg.Storage.Mongo.Database).Collection(cfg.Storage.Mongo.Collection)
	return &Mongo{client: client, coll: coll}, nil
}

// NewWithCollection wraps an existing collection. The caller owns the client.
func NewWithCollection(coll *mongo.Collection) *Mongo {
	return &Mongo{client: coll.Database().Client(), coll: coll}
}

func (m *Mongo) find(ctx context.Context, filter bson.M) ([]types.Student, error) {
	cursor, err := m.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	students := make([]types.Student, 0, len(docs))
	for _, d := range docs {
		students = append(students, d.student())
	}
	return students, nil
}

func (m *Mongo) GetStudents(ctx context.Context) ([]types.Student, error) {
	students, err := m.find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("GetStudents: %w", err)
	}
	return students, nil
}

// SearchStudents passes keyword straight to $regex.
func (m *Mongo) SearchStudents(ctx context.Context, keyword string) ([]types.Student, error) {
	filter := bson.M{"name": primitive.Regex{Pattern: keyword}}

	students, err := m.find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("SearchStudents: %w", err)
	}
	return students, nil
}

func (m *Mongo) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Student{}, storage.ErrNotFound
	}

	var doc document
	err = m.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Student{}, storage.ErrNotFound
	}
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: %w", err)
	}
	return doc.student(), nil
}

func (m *Mongo) CreateStudent(ctx context.Context, student types.Student) (string, error) {
	result, err := m.coll.InsertOne(ctx, fromStudent(student))
	if err != nil {
		return "", fmt.Errorf("CreateStudent: %w", err)
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("CreateStudent: unexpected id type %T", result.InsertedID)
	}
	return oid.Hex(), nil
}

func (m *Mongo) UpdateStudent(ctx context.Context, student types.Student) error {
	oid, err := primitive.ObjectIDFromHex(student.ID)
	if err != nil {
		return storage.ErrNotFound
	}

	result, err := m.coll.ReplaceOne(ctx, bson.M{"_id": oid}, fromStudent(student))
	if err != nil {
		return fmt.Errorf("UpdateStudent: %w", err)
	}
	if result.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
