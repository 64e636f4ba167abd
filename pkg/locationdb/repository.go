package locationdb

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/travigo/fieldtrack/pkg/database"
	"github.com/travigo/fieldtrack/pkg/tracking"
	"github.com/travigo/fieldtrack/pkg/util"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository reads and writes researchers and their location samples in MongoDB.
// Days are cut at midnight in Location.
type Repository struct {
	Location *time.Location

	researchers *mongo.Collection
	locations   *mongo.Collection
}

func New(db *mongo.Database, location *time.Location) *Repository {
	return &Repository{
		Location:    location,
		researchers: db.Collection(database.ResearchersCollection),
		locations:   db.Collection(database.LocationsCollection),
	}
}

// NewFromGlobal uses the connection set up by database.Connect
func NewFromGlobal(location *time.Location) *Repository {
	return New(database.MongoGlobalInstance.Database, location)
}

func (r *Repository) Researchers(ctx context.Context) ([]tracking.Researcher, error) {
	cursor, err := r.researchers.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}

	researchers := []tracking.Researcher{}
	if err := cursor.All(ctx, &researchers); err != nil {
		return nil, err
	}

	return researchers, nil
}

func (r *Repository) LocationsForDay(ctx context.Context, day civil.Date) ([]tracking.LocationSample, error) {
	return r.findLocations(ctx, DayFilter(day, r.Location))
}

func (r *Repository) LocationsForResearcher(ctx context.Context, researcherRef string, day civil.Date) ([]tracking.LocationSample, error) {
	filter := DayFilter(day, r.Location)
	filter["researcherref"] = researcherRef

	return r.findLocations(ctx, filter)
}

func (r *Repository) findLocations(ctx context.Context, filter bson.M) ([]tracking.LocationSample, error) {
	cursor, err := r.locations.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	samples := []tracking.LocationSample{}
	if err := cursor.All(ctx, &samples); err != nil {
		return nil, err
	}

	return samples, nil
}

// InsertLocations writes a batch of samples in one unordered bulk write
func (r *Repository) InsertLocations(ctx context.Context, samples []tracking.LocationSample) error {
	if len(samples) == 0 {
		return nil
	}

	operations := make([]mongo.WriteModel, 0, len(samples))
	for _, sample := range samples {
		operations = append(operations, mongo.NewInsertOneModel().SetDocument(sample))
	}

	_, err := r.locations.BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false))
	return err
}

// UpsertResearchers replaces researchers by PrimaryIdentifier, keeping CreationDateTime
func (r *Repository) UpsertResearchers(ctx context.Context, researchers []tracking.Researcher) error {
	if len(researchers) == 0 {
		return nil
	}

	now := time.Now()

	operations := make([]mongo.WriteModel, 0, len(researchers))
	for _, researcher := range researchers {
		researcher.ModificationDateTime = now

		operations = append(operations, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"primaryidentifier": researcher.PrimaryIdentifier}).
			SetUpdate(bson.M{
				"$set": bson.M{
					"primaryidentifier":    researcher.PrimaryIdentifier,
					"name":                 researcher.Name,
					"photourl":             researcher.PhotoURL,
					"isactive":             researcher.IsActive,
					"modificationdatetime": researcher.ModificationDateTime,
				},
				"$setOnInsert": bson.M{"creationdatetime": now},
			}).
			SetUpsert(true))
	}

	_, err := r.researchers.BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false))
	return err
}

// DeleteLocationsBefore removes samples older than cutoff and returns the number removed
func (r *Repository) DeleteLocationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.locations.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}

// DayFilter matches samples whose timestamp falls within day in location
func DayFilter(day civil.Date, location *time.Location) bson.M {
	start, end := util.DayBounds(day, location)

	return bson.M{"timestamp": bson.M{"$gte": start, "$lt": end}}
}
