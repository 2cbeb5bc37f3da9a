package storage

import (
	"context"
	"fmt"
	"time"

	"shrike/core"
	"shrike/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoDB holds the MongoDB client and database handles
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongoDB creates a new MongoDB connection
func NewMongoDB(uri, dbName string, maxPoolSize uint64, logger *zap.SugaredLogger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetMaxPoolSize(maxPoolSize)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB successfully")

	return &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

// HealthCheck performs a health check on the MongoDB connection
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// MongoReportStorage implements ReportStorageInterface using MongoDB.
// Reports are stored as whole documents; the bson tags on core.Report
// map them into the collection directly.
type MongoReportStorage struct {
	mongoDB *MongoDB
	coll    *mongo.Collection
	logger  *zap.SugaredLogger
}

// NewMongoReportStorage creates a new MongoDB-based report storage
func NewMongoReportStorage(mongoDB *MongoDB, collection string, logger *zap.SugaredLogger) *MongoReportStorage {
	return &MongoReportStorage{
		mongoDB: mongoDB,
		coll:    mongoDB.Database.Collection(collection),
		logger:  logger,
	}
}

// SaveReport persists a report, replacing any previous document with the same ID
func (mrs *MongoReportStorage) SaveReport(ctx context.Context, report *core.Report) error {
	if report.ID == "" {
		return fmt.Errorf("report ID cannot be empty")
	}

	opts := options.Replace().SetUpsert(true)
	_, err := mrs.coll.ReplaceOne(ctx, bson.M{"_id": report.ID}, report, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert report: %w", err)
	}

	metrics.ReportsSaved.WithLabelValues("mongodb").Inc()
	mrs.logger.Infof("Saved report %s to MongoDB", report.ID)
	return nil
}

// GetReport retrieves a full report by ID
func (mrs *MongoReportStorage) GetReport(ctx context.Context, id string) (*core.Report, error) {
	var report core.Report
	err := mrs.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to find report: %w", err)
	}
	return &report, nil
}

// summaryFromReport builds the listing row for one report document
func summaryFromReport(report *core.Report) ReportSummary {
	return ReportSummary{
		ID:         report.ID,
		CreatedAt:  report.CreatedAt.UTC().Format(time.RFC3339),
		TargetName: report.Target.Name,
		SHA256:     report.Target.SHA256,
		Score:      report.Score,
		Findings:   len(report.Findings),
		Families:   familyNames(report),
	}
}

// ListReports returns report summaries ordered newest first
func (mrs *MongoReportStorage) ListReports(ctx context.Context, limit int, offset int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	findOptions := options.Find()
	findOptions.SetSort(bson.M{"created_at": -1})
	findOptions.SetLimit(int64(limit))
	findOptions.SetSkip(int64(offset))

	cursor, err := mrs.coll.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find reports: %w", err)
	}
	defer cursor.Close(ctx)

	summaries := make([]ReportSummary, 0)
	for cursor.Next(ctx) {
		var report core.Report
		if err := cursor.Decode(&report); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		summaries = append(summaries, summaryFromReport(&report))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	return summaries, nil
}

// GetReportCount returns the total number of stored reports
func (mrs *MongoReportStorage) GetReportCount(ctx context.Context) (int64, error) {
	count, err := mrs.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

// DeleteReport removes a report by ID
func (mrs *MongoReportStorage) DeleteReport(ctx context.Context, id string) error {
	result, err := mrs.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrReportNotFound
	}
	return nil
}

// SearchReports matches the query against target name, hash and family names
func (mrs *MongoReportStorage) SearchReports(ctx context.Context, query string, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	pattern := bson.M{"$regex": query, "$options": "i"}
	filter := bson.M{"$or": []bson.M{
		{"target.name": pattern},
		{"target.sha256": pattern},
		{"families.family": pattern},
	}}

	findOptions := options.Find()
	findOptions.SetSort(bson.M{"created_at": -1})
	findOptions.SetLimit(int64(limit))

	cursor, err := mrs.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to search reports: %w", err)
	}
	defer cursor.Close(ctx)

	summaries := make([]ReportSummary, 0)
	for cursor.Next(ctx) {
		var report core.Report
		if err := cursor.Decode(&report); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		summaries = append(summaries, summaryFromReport(&report))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	return summaries, nil
}

// EnsureIndexes creates the indexes used by listings and hash lookups
func (mrs *MongoReportStorage) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "target.sha256", Value: 1}}},
		{Keys: bson.D{{Key: "score", Value: -1}}},
	}

	_, err := mrs.coll.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create report indexes: %w", err)
	}
	return nil
}
