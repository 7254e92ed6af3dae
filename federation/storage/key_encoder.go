package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/wbrown/janus-federation/federation"
)

// IndexType represents different index orderings
type IndexType uint8

const (
	SPO IndexType = iota // Subject-Predicate-Object
	POS                  // Predicate-Object-Subject
	OSP                  // Object-Subject-Predicate
)

var allIndices = []IndexType{SPO, POS, OSP}

func (i IndexType) String() string {
	switch i {
	case SPO:
		return "SPO"
	case POS:
		return "POS"
	case OSP:
		return "OSP"
	default:
		return fmt.Sprintf("index(%d)", uint8(i))
	}
}

// order returns the triple positions (0=S, 1=P, 2=O) in key order
func (i IndexType) order() []int {
	switch i {
	case POS:
		return []int{1, 2, 0}
	case OSP:
		return []int{2, 0, 1}
	default:
		return []int{0, 1, 2}
	}
}

// chooseIndex picks the index whose key starts with the longest run of
// ground positions of pattern, and returns that run's length
func chooseIndex(pattern federation.Triple) (IndexType, int) {
	terms := pattern.Terms()
	best, bestLen := SPO, 0
	for _, idx := range allIndices {
		n := 0
		for _, pos := range idx.order() {
			if terms[pos].IsVariable() {
				break
			}
			n++
		}
		if n > bestLen {
			best, bestLen = idx, n
		}
	}
	return best, bestLen
}

// Keys are the index byte followed by the three terms in index order,
// each as a 4-byte big-endian length and the term's string encoding.

// encodeKey builds the key of a ground triple in index idx
func encodeKey(idx IndexType, t federation.Triple) []byte {
	return encodePrefix(idx, t, 3)
}

// encodePrefix encodes the first n components of t in index order
func encodePrefix(idx IndexType, t federation.Triple, n int) []byte {
	terms := t.Terms()
	key := []byte{byte(idx)}
	for _, pos := range idx.order()[:n] {
		s := terms[pos].String()
		key = binary.BigEndian.AppendUint32(key, uint32(len(s)))
		key = append(key, s...)
	}
	return key
}

// decodeKey recovers the triple stored under key
func decodeKey(key []byte) (federation.Triple, error) {
	if len(key) < 1 {
		return federation.Triple{}, fmt.Errorf("key too short")
	}
	idx := IndexType(key[0])
	rest := key[1:]
	var terms [3]federation.Term
	for _, pos := range idx.order() {
		if len(rest) < 4 {
			return federation.Triple{}, fmt.Errorf("truncated %s key", idx)
		}
		n := binary.BigEndian.Uint32(rest)
		rest = rest[4:]
		if uint32(len(rest)) < n {
			return federation.Triple{}, fmt.Errorf("truncated %s key", idx)
		}
		term, err := federation.ParseTerm(string(rest[:n]))
		if err != nil {
			return federation.Triple{}, fmt.Errorf("decoding %s key: %w", idx, err)
		}
		terms[pos] = term
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return federation.Triple{}, fmt.Errorf("trailing bytes in %s key", idx)
	}
	return federation.NewTriple(terms[0], terms[1], terms[2]), nil
}
