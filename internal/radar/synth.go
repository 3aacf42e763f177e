package radar

import (
	"strconv"
	"time"
)

// SyntheticInterval is the nominal spacing between synthesized frames.
const SyntheticInterval = 2 * time.Minute

// SyntheticTimestampCount is how many timestamps the gateway synthesizes
// when the provider cannot list them.
const SyntheticTimestampCount = 30

const placeholderImageURL = "https://via.placeholder.com/800x600/1a1a2e/00ff00?text=Frame+"

// ContinentalBounds is the nominal coverage region of synthesized frames.
var ContinentalBounds = Bounds{
	North: 49.0,
	South: 25.0,
	East:  -66.0,
	West:  -125.0,
}

func syntheticMetadata() *Metadata {
	return &Metadata{
		DataType:              "RALA",
		UpdateIntervalMinutes: int(SyntheticInterval / time.Minute),
		Source:                "MRMS",
		Units:                 "dBZ",
	}
}

// Synthesize builds count evenly spaced placeholder frames ending at now,
// ordered oldest to newest. The newest frame's image is "Frame+0", the one
// before it "Frame+1", and so on. count <= 0 yields an empty batch.
func Synthesize(now time.Time, count int) Batch {
	if count <= 0 {
		return Batch{}
	}
	now = now.UTC()

	frames := make(Batch, count)
	for age := 0; age < count; age++ {
		frames[count-1-age] = Frame{
			Timestamp: now.Add(-time.Duration(age) * SyntheticInterval),
			ImageURL:  placeholderImageURL + strconv.Itoa(age),
			Bounds:    ContinentalBounds,
			Metadata:  syntheticMetadata(),
		}
	}
	return frames
}

// SyntheticTimestamps returns count timestamps spaced SyntheticInterval apart,
// oldest first, the last one equal to now.
func SyntheticTimestamps(now time.Time, count int) []time.Time {
	if count <= 0 {
		return []time.Time{}
	}
	now = now.UTC()

	ts := make([]time.Time, count)
	for age := 0; age < count; age++ {
		ts[count-1-age] = now.Add(-time.Duration(age) * SyntheticInterval)
	}
	return ts
}
