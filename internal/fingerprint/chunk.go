// Package fingerprint splits documents into fixed-length overlapping chunks
// and maps each chunk to a bounded integer using a polynomial rolling hash.
package fingerprint

// ChunkSize is the window length shared by every digest. Changing it makes
// digests from different runs incomparable.
const ChunkSize = 7

// Chunk returns the overlapping windows of length k in doc, left to right
// with stride 1. A document shorter than k yields no chunks. The returned
// windows share memory with doc.
func Chunk(doc []byte, k int) [][]byte {
	if k <= 0 || len(doc) < k {
		return nil
	}
	chunks := make([][]byte, 0, len(doc)-k+1)
	for i := 0; i+k <= len(doc); i++ {
		chunks = append(chunks, doc[i:i+k:i+k])
	}
	return chunks
}

// Count returns the number of chunks a document of length n produces.
func Count(n, k int) int {
	if k <= 0 || n < k {
		return 0
	}
	return n - k + 1
}
