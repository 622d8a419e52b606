package backend

import "github.com/swiftlog/corelog/pkg/wire"

// JoinedArgsDecoder decodes a payload written by a producer that formatted
// every argument value in a single pass and joined them with
// namedArgsDelimiter, the producer-side half of quill's
// _format_and_split_arguments trick: one wire string field holds every
// value, split back apart here instead of the producer paying for N
// separate length-prefixed strings.
type JoinedArgsDecoder struct{}

// Decode reads one length-prefixed, delimiter-joined string and splits it
// into individual positional argument values.
func (JoinedArgsDecoder) Decode(cursor *wire.Cursor, store *wire.ArgStore) error {
	if cursor.Remaining() == 0 {
		return nil
	}
	joined, err := cursor.ReadString()
	if err != nil {
		return err
	}
	for _, v := range splitJoinedArgValues(joined) {
		store.AddPositional(v)
	}
	return nil
}
