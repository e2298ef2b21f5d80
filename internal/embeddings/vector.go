package embeddings

import (
	"encoding/binary"
	"math"
)

// Encode packs a vector as little-endian float32 bytes for BLOB storage.
func Encode(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode unpacks a vector written by Encode. Trailing bytes that do not
// form a whole float32 are ignored.
func Decode(data []byte) []float32 {
	if len(data) < 4 {
		return nil
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// CosineSimilarity computes cosine similarity between two vectors. It
// returns 0 for vectors of different length or zero magnitude.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Scored is a candidate index and its similarity to a query.
type Scored struct {
	Index int
	Score float32
}

// TopK returns the k vectors most similar to query, best first. Equal
// scores keep their input order.
func TopK(query []float32, vectors [][]float32, k int) []Scored {
	scores := make([]Scored, len(vectors))
	for i, v := range vectors {
		scores[i] = Scored{Index: i, Score: CosineSimilarity(query, v)}
	}

	// Selection sort is fine for the small k the agent asks for.
	for i := 0; i < k && i < len(scores); i++ {
		best := i
		for j := i + 1; j < len(scores); j++ {
			if scores[j].Score > scores[best].Score {
				best = j
			}
		}
		if best != i {
			picked := scores[best]
			copy(scores[i+1:best+1], scores[i:best])
			scores[i] = picked
		}
	}

	if k > len(scores) {
		k = len(scores)
	}
	if k < 0 {
		k = 0
	}
	return scores[:k]
}
