package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ResearchersCollection = "researchers"
	LocationsCollection   = "researcher_locations"
)

func createIndexes() {
	createResearchersIndexes()
	createLocationsIndexes()
}

func createResearchersIndexes() {
	researchersCollection := GetCollection(ResearchersCollection)
	researchersIndex := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "primaryidentifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "isactive", Value: 1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := researchersCollection.Indexes().CreateMany(context.Background(), researchersIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createLocationsIndexes() {
	locationsCollection := GetCollection(LocationsCollection)
	locationsIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "timestamp", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "researcherref", Value: 1}, {Key: "timestamp", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "location", Value: "2dsphere"}},
		},
	}

	opts := options.CreateIndexes()
	_, err := locationsCollection.Indexes().CreateMany(context.Background(), locationsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
