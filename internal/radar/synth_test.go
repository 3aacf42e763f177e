package radar

import (
	"testing"
	"time"
)

func TestSynthesizeProducesEvenlySpacedFramesEndingNow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, n := range []int{1, 2, 10, 30} {
		batch := Synthesize(now, n)
		if len(batch) != n {
			t.Fatalf("expected %d frames, got %d", n, len(batch))
		}
		last, _ := batch.Latest()
		if !last.Timestamp.Equal(now) {
			t.Fatalf("expected last timestamp %v, got %v", now, last.Timestamp)
		}
		seen := make(map[string]bool)
		for i, f := range batch {
			if i > 0 {
				gap := f.Timestamp.Sub(batch[i-1].Timestamp)
				if gap != SyntheticInterval {
					t.Fatalf("n=%d: expected spacing %v between %d and %d, got %v", n, SyntheticInterval, i-1, i, gap)
				}
			}
			if f.Bounds != ContinentalBounds {
				t.Fatalf("expected continental bounds, got %+v", f.Bounds)
			}
			if seen[f.ImageURL] {
				t.Fatalf("duplicate image url %q", f.ImageURL)
			}
			seen[f.ImageURL] = true
			if err := f.Validate(); err != nil {
				t.Fatalf("synthetic frame %d invalid: %v", i, err)
			}
		}
	}
}

func TestSynthesizeNonPositiveCountIsEmpty(t *testing.T) {
	now := time.Now()
	for _, n := range []int{0, -3} {
		if got := Synthesize(now, n); len(got) != 0 {
			t.Fatalf("expected empty batch for %d, got %d frames", n, len(got))
		}
	}
}

func TestSynthesizeNewestFrameIsFrameZero(t *testing.T) {
	batch := Synthesize(time.Now(), 3)
	last, _ := batch.Latest()
	if want := placeholderImageURL + "0"; last.ImageURL != want {
		t.Fatalf("expected newest image %q, got %q", want, last.ImageURL)
	}
	if want := placeholderImageURL + "2"; batch[0].ImageURL != want {
		t.Fatalf("expected oldest image %q, got %q", want, batch[0].ImageURL)
	}
	if batch[0].Metadata == nil || batch[0].Metadata.Units != "dBZ" {
		t.Fatalf("expected dBZ metadata, got %+v", batch[0].Metadata)
	}
}

func TestSyntheticTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := SyntheticTimestamps(now, SyntheticTimestampCount)
	if len(ts) != 30 {
		t.Fatalf("expected 30 timestamps, got %d", len(ts))
	}
	if !ts[len(ts)-1].Equal(now) {
		t.Fatalf("expected last timestamp %v, got %v", now, ts[len(ts)-1])
	}
	if want := now.Add(-29 * SyntheticInterval); !ts[0].Equal(want) {
		t.Fatalf("expected first timestamp %v, got %v", want, ts[0])
	}
}
