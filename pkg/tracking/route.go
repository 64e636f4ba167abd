package tracking

import (
	"golang.org/x/exp/slices"
)

// Route returns the samples belonging to researcherRef in ascending timestamp
// order. Samples sharing a timestamp keep their input order.
func Route(samples []LocationSample, researcherRef string) []LocationSample {
	route := []LocationSample{}

	for _, sample := range samples {
		if sample.ResearcherRef == researcherRef {
			route = append(route, sample)
		}
	}

	slices.SortStableFunc(route, func(a, b LocationSample) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	return route
}

// RouteDistance sums the leg distances of an ordered route in metres
func RouteDistance(route []LocationSample) float64 {
	total := 0.0

	for i := 1; i < len(route); i++ {
		total += route[i-1].Location.Distance(route[i].Location)
	}

	return total
}
