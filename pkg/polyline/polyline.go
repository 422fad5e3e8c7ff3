// Package polyline encodes and decodes transects in Google's encoded polyline
// format (precision 1e5) and samples points along them.
// The format is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"

	"github.com/groundwatch/groundwatch/internal/geo"
)

// ErrMalformed is returned when an encoded polyline is truncated or corrupt.
var ErrMalformed = errors.New("malformed polyline")

const precision = 1e5

// Decode decodes a polyline string into points.
// An empty string decodes to a nil slice.
func Decode(encoded string) ([]geo.Point, error) {
	if encoded == "" {
		return nil, nil
	}

	var points []geo.Point
	index := 0
	lat := 0
	lon := 0

	for index < len(encoded) {
		latDelta, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		if next >= len(encoded) {
			// A latitude without its longitude.
			return nil, ErrMalformed
		}
		lonDelta, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next

		lat += latDelta
		lon += lonDelta
		points = append(points, geo.Point{
			Lat: float64(lat) / precision,
			Lon: float64(lon) / precision,
		})
	}

	return points, nil
}

// decodeValue decodes one zig-zag varint starting at index and returns it
// with the index of the following byte.
func decodeValue(encoded string, index int) (int, int, error) {
	shift := 0
	result := 0

	for {
		if index >= len(encoded) {
			return 0, index, ErrMalformed
		}
		b := int(encoded[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, index, ErrMalformed
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// Encode encodes points into a polyline string.
func Encode(points []geo.Point) string {
	if len(points) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(points)*4)
	prevLat := 0
	prevLon := 0

	for _, p := range points {
		lat := int(math.Round(p.Lat * precision))
		lon := int(math.Round(p.Lon * precision))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(encoded)
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// LengthKm returns the length of the path through points in kilometres.
func LengthKm(points []geo.Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += geo.DistanceKm(points[i-1], points[i])
	}
	return total
}

// Sample returns points spaced roughly intervalKm apart along the path,
// always including the first and last vertex. A non-positive interval
// returns the vertices unchanged.
func Sample(points []geo.Point, intervalKm float64) []geo.Point {
	if len(points) == 0 {
		return nil
	}
	if intervalKm <= 0 {
		return points
	}

	sampled := []geo.Point{points[0]}
	accumulated := 0.0

	for i := 1; i < len(points); i++ {
		from, to := points[i-1], points[i]
		segment := geo.DistanceKm(from, to)
		walked := 0.0

		for accumulated+(segment-walked) >= intervalKm {
			walked += intervalKm - accumulated
			fraction := walked / segment
			sampled = append(sampled, geo.Point{
				Lat: from.Lat + fraction*(to.Lat-from.Lat),
				Lon: from.Lon + fraction*(to.Lon-from.Lon),
			})
			accumulated = 0
		}

		accumulated += segment - walked
	}

	if last := points[len(points)-1]; sampled[len(sampled)-1] != last {
		sampled = append(sampled, last)
	}

	return sampled
}
