package tracking

// LatestPositions reduces samples to the most recent sample per researcher.
// Researchers absent from samples have no entry. When two samples of the same
// researcher share a timestamp the one appearing later in samples wins.
func LatestPositions(samples []LocationSample) map[string]LocationSample {
	latest := make(map[string]LocationSample)

	for _, sample := range samples {
		current, exists := latest[sample.ResearcherRef]
		if !exists || !sample.Timestamp.Before(current.Timestamp) {
			latest[sample.ResearcherRef] = sample
		}
	}

	return latest
}
