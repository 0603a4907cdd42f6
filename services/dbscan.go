package services

import "math"

// noiseLabel markiert Punkte, die keinem Cluster zugeordnet wurden.
const noiseLabel = -1

// cosineDistance berechnet 1 - Kosinusähnlichkeit zweier Vektoren.
// Nullvektoren gelten als maximal weit entfernt.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// dbscan führt dichtebasiertes Clustering über die Vektoren aus und gibt
// pro Punkt ein Cluster-Label zurück (noiseLabel = kein Cluster).
// eps ist der Kosinusdistanz-Radius, minPts die Mindestgröße einer
// Nachbarschaft einschließlich des Punktes selbst.
func dbscan(vectors [][]float32, eps float64, minPts int) []int {
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = noiseLabel
	}
	visited := make([]bool, n)

	neighborsOf := func(idx int) []int {
		var neighbors []int
		for j := 0; j < n; j++ {
			if cosineDistance(vectors[idx], vectors[j]) <= eps {
				neighbors = append(neighbors, j)
			}
		}
		return neighbors
	}

	cluster := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := neighborsOf(i)
		if len(neighbors) < minPts {
			continue // vorerst Rauschen; kann später als Randpunkt eingesammelt werden
		}

		labels[i] = cluster
		queue := append([]int{}, neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if labels[j] == noiseLabel {
				labels[j] = cluster // Randpunkt übernehmen
			}
			if visited[j] {
				continue
			}
			visited[j] = true
			labels[j] = cluster

			jn := neighborsOf(j)
			if len(jn) >= minPts {
				queue = append(queue, jn...)
			}
		}
		cluster++
	}

	return labels
}
