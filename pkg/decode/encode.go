package decode

import (
	"errors"
	"fmt"

	"github.com/robdobsn/raftgo/pkg/schema"
)

// Encode errors.
var (
	// ErrNoValues indicates an action encode with no values.
	ErrNoValues = errors.New("no values to encode")
)

// EncodeAction packs outgoing values into wire bytes for a write action.
//
// Each value first has the action's subtrahend removed and is then scaled
// by the multiplier (the inverse of the read path's offset and divisor),
// before packing per the action's type code. Values are concatenated in
// order. Literal prefix/postfix wrapping is left to the caller, which owns
// the hex framing of the command.
func EncodeAction(action *schema.Action, values []float64) ([]byte, error) {
	if len(values) == 0 {
		return nil, ErrNoValues
	}

	tc, err := schema.ParseTypeCode(action.Type)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", action.Name, err)
	}

	out := make([]byte, 0, len(values)*tc.Width)
	for _, v := range values {
		v -= action.Subtrahend
		if action.Multiplier != 0 {
			v *= action.Multiplier
		}
		out = append(out, tc.Pack(v)...)
	}
	return out, nil
}
