package frame

import (
	"encoding/json"
	"errors"
)

// Framing constants.
const (
	// TransportPrefixSize is the fixed transport-layer prefix the
	// classifier skips.
	TransportPrefixSize = 2

	// EnvelopeMagicBase is the byte below the first valid envelope magic;
	// version = magic - EnvelopeMagicBase.
	EnvelopeMagicBase = 0xDA

	// EnvelopeMagicMin and EnvelopeMagicMax bound the versioned envelope
	// magic bytes (versions 1-5).
	EnvelopeMagicMin = 0xDB
	EnvelopeMagicMax = 0xDF

	// NoTopicIndex marks an enveloped frame without a topic.
	NoTopicIndex = 0xFF
)

// Classification errors.
var (
	// ErrFrameTooShort indicates the frame is shorter than the transport
	// prefix plus one classification byte.
	ErrFrameTooShort = errors.New("frame too short to classify")
)

// Kind is the frame class.
type Kind uint8

const (
	// KindUnknown is an unclassifiable frame (e.g. bad JSON).
	KindUnknown Kind = iota

	// KindJSON is a JSON frame.
	KindJSON

	// KindBinary is a versioned binary envelope frame.
	KindBinary

	// KindBinaryUnknownVersion is an envelope with an unrecognized version.
	KindBinaryUnknownVersion

	// KindBinaryLegacy is a binary frame with no envelope.
	KindBinaryLegacy
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindBinary:
		return "binary"
	case KindBinaryUnknownVersion:
		return "binary-unknown-version"
	case KindBinaryLegacy:
		return "binary-legacy"
	default:
		return "unknown"
	}
}

// TopicLookup resolves a topic index to a topic name. Returns ok=false for
// unmapped indices.
type TopicLookup func(index int) (string, bool)

// Frame is a classified inbound frame.
type Frame struct {
	// Kind is the frame class.
	Kind Kind

	// Version is the envelope or JSON "_v" version, 0 when absent.
	Version int

	// TopicIndex is the envelope or JSON "_t" topic index, -1 when absent.
	TopicIndex int

	// TopicName is the resolved topic name, empty when undefined.
	TopicName string

	// Payload is the frame body after any envelope. For JSON frames this
	// is the full JSON text; for binary frames the record bytes.
	Payload []byte
}

// jsonMeta is the reserved metadata peeked from JSON frames.
type jsonMeta struct {
	Topic   json.RawMessage `json:"_t"`
	Version int             `json:"_v"`
}

// Classify inspects a raw frame (including the 2-byte transport prefix) and
// returns its classification. The lookup may be nil; unmapped topic indices
// leave TopicName empty.
func Classify(data []byte, lookup TopicLookup) (Frame, error) {
	if len(data) <= TransportPrefixSize {
		return Frame{Kind: KindUnknown, TopicIndex: -1}, ErrFrameTooShort
	}
	body := data[TransportPrefixSize:]
	marker := body[0]

	if marker == '{' {
		return classifyJSON(body, lookup)
	}

	if marker&0xF0 == 0xD0 {
		if marker < EnvelopeMagicMin || marker > EnvelopeMagicMax {
			return Frame{Kind: KindBinaryUnknownVersion, TopicIndex: -1}, nil
		}
		f := Frame{
			Kind:       KindBinary,
			Version:    int(marker - EnvelopeMagicBase),
			TopicIndex: -1,
		}
		payload := body[1:]
		if len(payload) == 0 {
			// Envelope byte with no topic byte: empty enveloped frame.
			f.Payload = nil
			return f, nil
		}
		if payload[0] != NoTopicIndex {
			f.TopicIndex = int(payload[0])
			if lookup != nil {
				if name, ok := lookup(f.TopicIndex); ok {
					f.TopicName = name
				}
			}
		}
		f.Payload = payload[1:]
		return f, nil
	}

	// Legacy binary: no envelope, payload starts right after the prefix.
	return Frame{Kind: KindBinaryLegacy, TopicIndex: -1, Payload: body}, nil
}

// classifyJSON parses the reserved "_t"/"_v" members of a JSON frame.
func classifyJSON(body []byte, lookup TopicLookup) (Frame, error) {
	var meta jsonMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		return Frame{Kind: KindUnknown, TopicIndex: -1}, nil
	}

	f := Frame{
		Kind:       KindJSON,
		Version:    meta.Version,
		TopicIndex: -1,
		Payload:    body,
	}
	if len(meta.Topic) > 0 {
		var name string
		if err := json.Unmarshal(meta.Topic, &name); err == nil {
			f.TopicName = name
		} else {
			var index int
			if err := json.Unmarshal(meta.Topic, &index); err == nil {
				f.TopicIndex = index
				if lookup != nil {
					if resolved, ok := lookup(index); ok {
						f.TopicName = resolved
					}
				}
			}
		}
	}
	return f, nil
}
