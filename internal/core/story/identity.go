package story

import (
	"crypto/md5"
	"errors"
	"math"
	"math/big"
	"strings"

	perr "reddcrawl/internal/platform/errors"
)

// DefaultTestSize is the fraction of the corpus assigned to the test split
const DefaultTestSize = 0.0005

// ErrMissingID is returned when a record has no usable natural key
var ErrMissingID = errors.New("story: missing id")

// maxHash is the largest md5 digest value, 2^128 - 1
var maxHash = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Assigner derives the identity hash and the train/test split from a record id.
// It holds no mutable state and is safe for concurrent use
type Assigner struct {
	testSize  float64
	threshold *big.Int
}

// NewAssigner builds an assigner for the given test fraction in [0, 1]
func NewAssigner(testSize float64) (Assigner, error) {
	if testSize < 0 || testSize > 1 || math.IsNaN(testSize) {
		return Assigner{}, perr.InvalidArgf("story: test size %v outside [0,1]", testSize)
	}
	f := new(big.Float).SetPrec(256).SetInt(maxHash)
	f.Mul(f, new(big.Float).SetPrec(256).SetFloat64(testSize))
	th, _ := f.Int(nil) // truncation toward zero is floor for non-negative values
	return Assigner{testSize: testSize, threshold: th}, nil
}

// MustAssigner is NewAssigner that panics on a bad fraction
func MustAssigner(testSize float64) Assigner {
	a, err := NewAssigner(testSize)
	if err != nil {
		panic(err)
	}
	return a
}

// TestSize returns the configured test fraction
func (a Assigner) TestSize() float64 { return a.testSize }

// Threshold returns floor(MAX_HASH * testSize); hashes below it land in test
func (a Assigner) Threshold() *big.Int { return new(big.Int).Set(a.threshold) }

// Hash returns the md5 digest of id read as a 128 bit big-endian unsigned integer
func Hash(id string) (*big.Int, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingID
	}
	sum := md5.Sum([]byte(id))
	return new(big.Int).SetBytes(sum[:]), nil
}

// SplitOf maps a hash to its split
func (a Assigner) SplitOf(hash *big.Int) Split {
	if a.threshold != nil && hash.Cmp(a.threshold) < 0 {
		return SplitTest
	}
	return SplitTrain
}

// Assign returns the hash and split for id
func (a Assigner) Assign(id string) (*big.Int, Split, error) {
	h, err := Hash(id)
	if err != nil {
		return nil, "", err
	}
	return h, a.SplitOf(h), nil
}

// Annotate returns a copy of s carrying meta and set.
// The input is never modified
func (a Assigner) Annotate(s Story) (Story, error) {
	h, split, err := a.Assign(s.Summary.ID)
	if err != nil {
		return Story{}, err
	}
	out := s.Clone()
	ms, mc, mg := Maxima(out.History)
	out.Meta = &Meta{Hash: h, MaxScore: ms, MaxComments: mc, MaxGilded: mg}
	out.Set = split
	return out, nil
}
