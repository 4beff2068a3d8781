package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chest-xray-pipeline/models"
	"chest-xray-pipeline/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const runsCollection = "analysis_runs"

type MongoClient struct {
	client *mongo.Client
	runs   *mongo.Collection
}

func NewMongoClient(ctx context.Context, uri, database string) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	runs := client.Database(database).Collection(runsCollection)
	if _, err := runs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	}); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("error creating index: %w", err)
	}

	return &MongoClient{client: client, runs: runs}, nil
}

func (db *MongoClient) Close() error {
	if db.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

func (db *MongoClient) StoreRun(ctx context.Context, run *models.AnalysisRun) error {
	if run.ID == "" {
		run.ID = utils.NewID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := db.runs.ReplaceOne(ctx, bson.M{"_id": run.ID}, run, opts); err != nil {
		return fmt.Errorf("error storing run: %w", err)
	}
	return nil
}

func (db *MongoClient) GetRuns(ctx context.Context, limit int) ([]models.AnalysisRun, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := db.runs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying runs: %w", err)
	}
	defer cursor.Close(ctx)

	var runs []models.AnalysisRun
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("error decoding runs: %w", err)
	}
	for i := range runs {
		runs[i].ParseRatio()
	}
	return runs, nil
}

func (db *MongoClient) GetRun(ctx context.Context, id string) (models.AnalysisRun, bool, error) {
	var run models.AnalysisRun
	err := db.runs.FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.AnalysisRun{}, false, nil
	}
	if err != nil {
		return models.AnalysisRun{}, false, fmt.Errorf("failed to retrieve run: %w", err)
	}
	run.ParseRatio()
	return run, true, nil
}
