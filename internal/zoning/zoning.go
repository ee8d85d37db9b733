// Package zoning groups wards into risk zones: per-ward aggregates from the
// historical corpus are clustered, and clusters are ranked by observed flood
// frequency into ordinal zone labels.
package zoning

import (
	"fmt"
	"sort"

	"github.com/urbanrisk/floodwatch/internal/domain"
)

// zoneLabels in rank order, most severe first.
var zoneLabels = []string{
	domain.ZoneVeryHigh,
	domain.ZoneHigh,
	domain.ZoneMedium,
	domain.ZoneLow,
}

// Model is the trained zoning state. Exported fields serialize into the
// engine's state bundle.
type Model struct {
	Profiles      []domain.WardProfile `json:"profiles"`
	ClusterByWard map[string]int       `json:"clusterByWard"`
	ZoneByCluster map[int]string       `json:"zoneByCluster"`
	DefaultZone   string               `json:"defaultZone"`
	Clusters      int                  `json:"clusters"`
}

// PrepareProfiles groups the corpus by ward and computes the aggregates the
// clustering runs on. Static categorical ward attributes are encoded
// deterministically (sorted distinct labels).
func PrepareProfiles(corpus []*domain.HistoricalRecord) ([]domain.WardProfile, error) {
	if len(corpus) == 0 {
		return nil, fmt.Errorf("%w: empty corpus", domain.ErrInsufficientData)
	}

	type agg struct {
		profile   domain.WardProfile
		elevation string
		drainage  string
	}
	byWard := map[string]*agg{}
	for _, rec := range corpus {
		if rec.WardCode == "" {
			return nil, domain.SchemaErrorf("historical record has no ward code")
		}
		a, ok := byWard[rec.WardCode]
		if !ok {
			a = &agg{
				profile:   domain.WardProfile{WardCode: rec.WardCode, WardName: rec.WardName},
				elevation: rec.ElevationCategory,
				drainage:  rec.DrainageCategory,
			}
			byWard[rec.WardCode] = a
		}
		p := &a.profile
		if rec.Observation.RainfallMM != nil {
			r := *rec.Observation.RainfallMM
			p.MeanRainfall += r
			if r > p.MaxRainfall {
				p.MaxRainfall = r
			}
		}
		if rec.Observation.Rainfall24hMM != nil && *rec.Observation.Rainfall24hMM > p.Max24hRainfall {
			p.Max24hRainfall = *rec.Observation.Rainfall24hMM
		}
		if rec.FloodOccurred {
			p.FloodCount++
		}
		p.RecordCount++
	}

	// Deterministic codes for the static categories.
	elevCodes := encodeLabels(byWard, func(a *agg) string { return a.elevation })
	drainCodes := encodeLabels(byWard, func(a *agg) string { return a.drainage })

	profiles := make([]domain.WardProfile, 0, len(byWard))
	for _, a := range byWard {
		p := a.profile
		p.MeanRainfall /= float64(p.RecordCount)
		p.FloodFrequency = float64(p.FloodCount) / float64(p.RecordCount)
		p.ElevationCode = elevCodes[a.elevation]
		p.DrainageCode = drainCodes[a.drainage]
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].WardCode < profiles[j].WardCode })
	return profiles, nil
}

// Train clusters ward profiles and derives the cluster-to-zone mapping.
// Ranking is recomputed from this run only: clusters sorted by mean flood
// frequency descending, ties broken by cluster id ascending, labeled in
// rank order.
func Train(profiles []domain.WardProfile, cfg domain.TrainingConfig) (*Model, error) {
	k := cfg.Clusters
	if k <= 0 {
		k = 4
	}
	if len(profiles) < k {
		return nil, fmt.Errorf("%w: %d wards for %d clusters", domain.ErrInsufficientData, len(profiles), k)
	}

	points := make([][]float64, len(profiles))
	for i, p := range profiles {
		points[i] = []float64{
			p.MeanRainfall,
			p.MaxRainfall,
			p.Max24hRainfall,
			p.FloodFrequency,
			float64(p.ElevationCode),
			float64(p.DrainageCode),
		}
	}
	standardize(points)

	assignment := kmeans(points, k, cfg.Seed)

	// Mean flood frequency per cluster.
	freq := make([]float64, k)
	members := make([]int, k)
	for i, c := range assignment {
		freq[c] += profiles[i].FloodFrequency
		members[c]++
	}
	order := make([]int, k)
	for c := range order {
		order[c] = c
		if members[c] > 0 {
			freq[c] /= float64(members[c])
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if freq[order[i]] != freq[order[j]] {
			return freq[order[i]] > freq[order[j]]
		}
		return order[i] < order[j]
	})

	m := &Model{
		Profiles:      profiles,
		ClusterByWard: make(map[string]int, len(profiles)),
		ZoneByCluster: make(map[int]string, k),
		DefaultZone:   cfg.DefaultZone,
		Clusters:      k,
	}
	if m.DefaultZone == "" {
		m.DefaultZone = domain.ZoneMedium
	}
	for rank, c := range order {
		label := zoneLabels[len(zoneLabels)-1]
		if rank < len(zoneLabels) {
			label = zoneLabels[rank]
		}
		m.ZoneByCluster[c] = label
	}
	for i, p := range profiles {
		m.ClusterByWard[p.WardCode] = assignment[i]
	}
	return m, nil
}

// RiskZone returns the zone label for a ward. Unknown wards degrade to the
// default zone rather than failing; wards appear after training.
func (m *Model) RiskZone(wardCode string) string {
	if c, ok := m.ClusterByWard[wardCode]; ok {
		if zone, ok := m.ZoneByCluster[c]; ok {
			return zone
		}
	}
	return m.DefaultZone
}

// Assignments returns every trained ward with its cluster and zone, sorted
// by ward code.
func (m *Model) Assignments() []domain.ClusterAssignment {
	out := make([]domain.ClusterAssignment, 0, len(m.Profiles))
	for _, p := range m.Profiles {
		c := m.ClusterByWard[p.WardCode]
		out = append(out, domain.ClusterAssignment{
			WardCode: p.WardCode,
			WardName: p.WardName,
			Cluster:  c,
			RiskZone: m.ZoneByCluster[c],
		})
	}
	return out
}

// Zones returns the distinct zone labels present in this model.
func (m *Model) Zones() []string {
	seen := map[string]bool{}
	var out []string
	for _, zone := range m.ZoneByCluster {
		if !seen[zone] {
			seen[zone] = true
			out = append(out, zone)
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks internal consistency after deserialization.
func (m *Model) Validate() error {
	if len(m.Profiles) == 0 || len(m.ClusterByWard) == 0 || len(m.ZoneByCluster) == 0 {
		return fmt.Errorf("%w: zoning model is empty", domain.ErrStateMismatch)
	}
	for _, p := range m.Profiles {
		c, ok := m.ClusterByWard[p.WardCode]
		if !ok {
			return fmt.Errorf("%w: ward %s has a profile but no cluster", domain.ErrStateMismatch, p.WardCode)
		}
		if _, ok := m.ZoneByCluster[c]; !ok {
			return fmt.Errorf("%w: cluster %d has no zone label", domain.ErrStateMismatch, c)
		}
	}
	if m.DefaultZone == "" {
		return fmt.Errorf("%w: zoning model has no default zone", domain.ErrStateMismatch)
	}
	return nil
}

func encodeLabels[T any](byWard map[string]*T, get func(*T) string) map[string]int {
	seen := map[string]bool{}
	for _, a := range byWard {
		seen[get(a)] = true
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	codes := make(map[string]int, len(labels))
	for i, l := range labels {
		codes[l] = i
	}
	return codes
}
