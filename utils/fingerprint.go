package utils

import "hash/fnv"

// fpSeed starts every chained fingerprint so an empty chain differs from 0.
const fpSeed uint64 = 0x9e3779b185ebca87

func U64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func Mix64(a, b uint64) uint64 {
	h := fnv.New64a()
	h.Write(U64ToBytes(a))
	h.Write(U64ToBytes(b))
	return h.Sum64()
}

// Chain folds fingerprints left to right starting from a tag, so reordering
// the inputs changes the result.
func Chain(tag string, fps ...uint64) uint64 {
	acc := Mix64(fpSeed, U64(tag))
	for _, fp := range fps {
		acc = Mix64(acc, fp)
	}
	return acc
}
