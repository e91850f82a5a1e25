package rag

import (
	"math"
	"sort"
)

// CosineSimilarity retourne 0 pour un vecteur nul ou des dimensions différentes
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopBySimilarity retourne les indices des fetchK candidats les plus proches de la requête
func TopBySimilarity(query []float32, candidates [][]float32, fetchK int) []int {
	type scored struct {
		idx   int
		score float64
	}
	all := make([]scored, len(candidates))
	for i, c := range candidates {
		all[i] = scored{idx: i, score: CosineSimilarity(query, c)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	if fetchK > 0 && fetchK < len(all) {
		all = all[:fetchK]
	}
	out := make([]int, len(all))
	for i, s := range all {
		out[i] = s.idx
	}
	return out
}

// MaxMarginalRelevance sélectionne k candidats en équilibrant la pertinence
// (poids lambda) et la redondance avec les éléments déjà retenus (poids 1-lambda).
// Retourne les indices dans l'ordre de sélection.
func MaxMarginalRelevance(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = CosineSimilarity(query, c)
	}

	selected := make([]int, 0, k)
	used := make([]bool, len(candidates))
	for len(selected) < k {
		best, bestScore := -1, math.Inf(-1)
		for i := range candidates {
			if used[i] {
				continue
			}
			redundancy := 0.0
			if len(selected) > 0 {
				redundancy = math.Inf(-1)
			}
			for _, j := range selected {
				if sim := CosineSimilarity(candidates[i], candidates[j]); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*relevance[i] - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		used[best] = true
		selected = append(selected, best)
	}
	return selected
}

// rankMMR applique le pré-filtre fetchK puis le MMR; retourne des indices dans candidates
func rankMMR(query []float32, candidates [][]float32, opts SearchOptions) []int {
	pool := TopBySimilarity(query, candidates, opts.FetchK)
	poolVectors := make([][]float32, len(pool))
	for i, idx := range pool {
		poolVectors[i] = candidates[idx]
	}
	picked := MaxMarginalRelevance(query, poolVectors, opts.K, opts.Lambda)
	out := make([]int, len(picked))
	for i, p := range picked {
		out[i] = pool[p]
	}
	return out
}
