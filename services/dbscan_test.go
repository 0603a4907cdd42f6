package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 0, cosineDistance(a, a), 1e-9, "identische Vektoren haben Distanz 0")
	assert.InDelta(t, 1, cosineDistance(a, b), 1e-9, "orthogonale Vektoren haben Distanz 1")
	assert.InDelta(t, 1, cosineDistance(a, []float32{0, 0, 0}), 1e-9, "Nullvektor gilt als maximal entfernt")
	assert.InDelta(t, 2, cosineDistance(a, []float32{-1, 0, 0}), 1e-9)
}

func TestDBSCANGroupsNearbyPoints(t *testing.T) {
	vectors := [][]float32{
		{1, 0},      // Cluster A
		{0.99, 0.1}, // Cluster A
		{0, 1},      // Rauschen
	}

	labels := dbscan(vectors, 0.5, 2)

	assert.Equal(t, labels[0], labels[1], "nahe Punkte landen im selben Cluster")
	assert.NotEqual(t, noiseLabel, labels[0])
	assert.Equal(t, noiseLabel, labels[2], "isolierter Punkt bleibt Rauschen")
}

func TestDBSCANSeparatesClusters(t *testing.T) {
	vectors := [][]float32{
		{1, 0}, {0.98, 0.05},
		{0, 1}, {0.05, 0.98},
	}

	labels := dbscan(vectors, 0.3, 2)

	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[2], labels[3])
	assert.NotEqual(t, labels[0], labels[2], "entfernte Gruppen bilden getrennte Cluster")
}

func TestDBSCANAllNoiseWhenSparse(t *testing.T) {
	vectors := [][]float32{{1, 0}, {0, 1}, {-1, 0}}

	labels := dbscan(vectors, 0.1, 2)

	for i, label := range labels {
		assert.Equal(t, noiseLabel, label, "Punkt %d", i)
	}
}

func TestDBSCANMinPtsIncludesSelf(t *testing.T) {
	// Zwei nahe Punkte reichen bei minPts=2, weil die Nachbarschaft den
	// Punkt selbst enthält.
	vectors := [][]float32{{1, 0}, {0.99, 0.05}}

	labels := dbscan(vectors, 0.5, 2)

	assert.Equal(t, 0, labels[0])
	assert.Equal(t, 0, labels[1])
}

func TestDBSCANEmptyInput(t *testing.T) {
	assert.Empty(t, dbscan(nil, 0.5, 2))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "대통령", truncateRunes("대통령 발표", 3), "koreanischer Text wird runenweise gekürzt")
	assert.Equal(t, "abc", truncateRunes("abc", 10), "kurzer Text bleibt unverändert")
	assert.Equal(t, "", truncateRunes("", 5))
}
