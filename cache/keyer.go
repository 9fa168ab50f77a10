package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Keyer derives deterministic invocation keys from an operation identity and
// its arguments.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Injectivity: arguments that differ in value or dynamic type must produce different keys.
// - Purity: no I/O and no side effects.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key generates an invocation key from operation ID and arguments.
	Key(operationID string, args []any) (Key, error)
}

// DefaultKeyer generates SHA-256 based invocation keys.
type DefaultKeyer struct {
	serializer *valueSerializer
}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{serializer: &valueSerializer{}}
}

// Key generates a deterministic invocation key.
// The digest is the first 16 bytes of SHA-256 over the type-tagged
// canonical form of args, hex encoded. Arguments holding funcs, chans or
// cycles fail with ErrUnkeyable.
func (k *DefaultKeyer) Key(operationID string, args []any) (Key, error) {
	key := Key{Partition: operationID}
	if err := ValidateKey(key); err != nil {
		return Key{}, err
	}

	h := sha256.New()
	for i, arg := range args {
		canonical, err := k.serializer.serialize(arg)
		if err != nil {
			return Key{}, fmt.Errorf("cache: argument %d: %w", i, err)
		}
		// Length prefix keeps argument boundaries unambiguous.
		fmt.Fprintf(h, "%d:%s;", len(canonical), canonical)
	}

	key.Digest = hex.EncodeToString(h.Sum(nil)[:16])
	return key, nil
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
