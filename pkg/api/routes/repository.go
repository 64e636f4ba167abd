package routes

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/travigo/fieldtrack/pkg/tracking"
)

// LocationRepository is the read side of the location database
type LocationRepository interface {
	Researchers(ctx context.Context) ([]tracking.Researcher, error)
	LocationsForDay(ctx context.Context, day civil.Date) ([]tracking.LocationSample, error)
	LocationsForResearcher(ctx context.Context, researcherRef string, day civil.Date) ([]tracking.LocationSample, error)
}

// ReportQueue accepts encoded location reports for ingest
type ReportQueue interface {
	Publish(payload ...string) error
}
