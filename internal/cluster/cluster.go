// Package cluster groups geolocated incident reports into hotspots.
package cluster

import (
	"github.com/golang/geo/s2"

	"patrolnav/internal/patrol"
)

const (
	EarthRadiusMeters = 6371000.0

	DefaultRadiusMeters = 300.0
	DefaultMinIncidents = 3
)

// Point is one incident location. Risk is the scorer's probability for the
// incident, or 0 when no scorer is configured.
type Point struct {
	Lat   float64
	Lng   float64
	Label string
	Risk  float64
}

// DistanceMeters returns the great-circle distance between two coordinates.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

type group struct {
	lat, lng float64
	n        int
	risk     float64
	labels   map[string]int
	order    []string
}

func (g *group) add(p Point) {
	g.n++
	g.lat += (p.Lat - g.lat) / float64(g.n)
	g.lng += (p.Lng - g.lng) / float64(g.n)
	g.risk += p.Risk
	if p.Label == "" {
		return
	}
	if _, ok := g.labels[p.Label]; !ok {
		g.order = append(g.order, p.Label)
	}
	g.labels[p.Label]++
}

func (g *group) label() string {
	best, bestN := "", 0
	for _, l := range g.order {
		if g.labels[l] > bestN {
			best, bestN = l, g.labels[l]
		}
	}
	return best
}

// Aggregate clusters points in input order. A point joins the nearest cluster
// whose centroid lies within radiusM, otherwise it starts a new one. Clusters
// smaller than minIncidents are dropped. The result is ranked by incident
// count, labelled with the most frequent point label and numbered from 1.
func Aggregate(points []Point, radiusM float64, minIncidents int) []patrol.Hotspot {
	if radiusM <= 0 {
		radiusM = DefaultRadiusMeters
	}
	if minIncidents < 1 {
		minIncidents = 1
	}

	var groups []*group
	for _, p := range points {
		var nearest *group
		nearestD := radiusM
		for _, g := range groups {
			if d := DistanceMeters(g.lat, g.lng, p.Lat, p.Lng); d <= nearestD {
				nearest, nearestD = g, d
			}
		}
		if nearest == nil {
			nearest = &group{labels: map[string]int{}}
			groups = append(groups, nearest)
		}
		nearest.add(p)
	}

	hs := []patrol.Hotspot{}
	for _, g := range groups {
		if g.n < minIncidents {
			continue
		}
		hs = append(hs, patrol.Hotspot{
			Lat:       g.lat,
			Lng:       g.lng,
			Location:  g.label(),
			Incidents: g.n,
			RiskScore: g.risk / float64(g.n),
		})
	}
	hs = patrol.Rank(hs, patrol.ByIncidents)
	for i := range hs {
		id := i + 1
		hs[i].ID = &id
	}
	return hs
}
