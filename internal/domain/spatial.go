package domain

import "math"

// Bucket is one degree-sized cell of the coarse spatial prefilter index.
type Bucket struct {
	Lat int
	Lng int
}

// BucketFor returns the bucket containing the point.
func BucketFor(lat, lng float64) Bucket {
	return Bucket{Lat: int(math.Floor(lat)), Lng: int(math.Floor(lng))}
}

// MaxPrefilterBuckets bounds the bucket enumeration for a viewport. Past it
// the caller falls back to an unfiltered tier scan; large viewports hit the
// coarse tier, which stays small.
const MaxPrefilterBuckets = 1024

// Buckets enumerates the degree buckets covering the box, handling the
// antimeridian split. Returns nil when the enumeration would exceed
// MaxPrefilterBuckets.
func (b BoundingBox) Buckets() []Bucket {
	latFrom := int(math.Floor(b.MinLat))
	latTo := int(math.Floor(b.MaxLat))
	if latTo < latFrom {
		return nil
	}

	var lngRanges [][2]int
	if b.CrossesAntimeridian() {
		lngRanges = [][2]int{
			{int(math.Floor(b.MinLng)), 179},
			{-180, int(math.Floor(b.MaxLng))},
		}
	} else {
		lngRanges = [][2]int{{int(math.Floor(b.MinLng)), int(math.Floor(b.MaxLng))}}
	}

	total := 0
	for _, r := range lngRanges {
		if r[1] < r[0] {
			return nil
		}
		total += (latTo - latFrom + 1) * (r[1] - r[0] + 1)
	}
	if total > MaxPrefilterBuckets {
		return nil
	}

	buckets := make([]Bucket, 0, total)
	for lat := latFrom; lat <= latTo; lat++ {
		for _, r := range lngRanges {
			for lng := r[0]; lng <= r[1]; lng++ {
				buckets = append(buckets, Bucket{Lat: lat, Lng: lng})
			}
		}
	}
	return buckets
}
