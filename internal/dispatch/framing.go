package dispatch

import (
	"github.com/FairForge/containerdispatch/internal/codec"
	"github.com/FairForge/containerdispatch/internal/crypto"
)

// Framing is the serialization format and envelope algorithm of a send
type Framing struct {
	Format    codec.Format
	Algorithm crypto.Algorithm
}

// Binary is true when the bytes on the wire are not clean JSON text:
// Protobuf output or any encrypted envelope.
func (f Framing) Binary() bool {
	return f.Format.Binary() || f.Algorithm.Enabled()
}

func (f Framing) String() string {
	alg := f.Algorithm
	if alg == "" {
		alg = crypto.AlgorithmNone
	}
	return string(f.Format) + "+" + string(alg)
}

// ParseFraming parses the format and encryption names as given by operators
func ParseFraming(format, encryption string) (Framing, error) {
	f, err := codec.ParseFormat(format)
	if err != nil {
		return Framing{}, err
	}
	alg, err := crypto.ParseAlgorithm(encryption)
	if err != nil {
		return Framing{}, err
	}
	return Framing{Format: f, Algorithm: alg}, nil
}
