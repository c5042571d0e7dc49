package eventbus

// extractorState is the field extractor's scan state.
type extractorState int

const (
	scanning extractorState = iota
	sawKey
	awaitingColon
	sawColon
	inString
)

// FieldExtractor consumes a JSON token stream incrementally (one fragment
// at a time, as produced by an LM's raw streaming output) and emits only
// the string value of one named top-level field, as it arrives.
//
// State machine: SCANNING -> SAW_KEY -> SAW_COLON -> IN_STRING (with an
// internal AWAITING_COLON state between a key's closing quote and the
// ':' separator, to tolerate whitespace). Escape sequences \n, \t, \",
// \\, \/ are unescaped as encountered. In BufferMode, the full value is
// accumulated and emitted once, on the string's closing quote, instead of
// incrementally.
type FieldExtractor struct {
	fieldName  string
	bufferMode bool

	state      extractorState
	keyBuf     []byte
	valueBuf   []byte
	pendingEsc bool
	matched    bool // true once keyBuf matched fieldName for the current key
}

// NewFieldExtractor creates an extractor for the named top-level field.
// When bufferMode is true, Feed returns the full value only once, on
// string close; otherwise it returns each incremental piece as it's
// unescaped.
func NewFieldExtractor(fieldName string, bufferMode bool) *FieldExtractor {
	return &FieldExtractor{fieldName: fieldName, bufferMode: bufferMode}
}

// Feed processes one chunk of raw JSON text and returns any newly
// available output for the target field (empty if none), plus whether the
// field's value just closed (string-close reached).
func (fe *FieldExtractor) Feed(chunk string) (out string, closed bool) {
	var emitted []byte

	for i := 0; i < len(chunk); i++ {
		c := chunk[i]

		switch fe.state {
		case scanning:
			if c == '"' {
				fe.state = sawKey
				fe.keyBuf = fe.keyBuf[:0]
			}

		case sawKey:
			if c == '"' {
				fe.matched = string(fe.keyBuf) == fe.fieldName
				fe.state = awaitingColon
				continue
			}
			fe.keyBuf = append(fe.keyBuf, c)

		case awaitingColon:
			switch c {
			case ':':
				fe.state = sawColon
			case ' ', '\t', '\n', '\r':
				// keep waiting
			default:
				// malformed/unexpected; resync by scanning for the next key
				fe.state = scanning
			}

		case sawColon:
			switch {
			case c == '"':
				fe.state = inString
				fe.valueBuf = fe.valueBuf[:0]
			case c == ' ' || c == '\t' || c == '\n' || c == '\r':
				// keep waiting for the value to start
			default:
				// Non-string value (number/bool/null/object/array): this
				// extractor only surfaces string values, so reset and keep
				// scanning for the next key.
				fe.state = scanning
			}

		case inString:
			if fe.pendingEsc {
				unescaped := unescapeByte(c)
				if fe.matched {
					if fe.bufferMode {
						fe.valueBuf = append(fe.valueBuf, unescaped...)
					} else {
						emitted = append(emitted, unescaped...)
					}
				}
				fe.pendingEsc = false
				continue
			}
			switch c {
			case '\\':
				fe.pendingEsc = true
			case '"':
				fe.state = scanning
				if fe.matched {
					closed = true
					if fe.bufferMode {
						emitted = append(emitted, fe.valueBuf...)
					}
				}
				fe.matched = false
			default:
				if fe.matched {
					if fe.bufferMode {
						fe.valueBuf = append(fe.valueBuf, c)
					} else {
						emitted = append(emitted, c)
					}
				}
			}
		}
	}

	return string(emitted), closed
}

func unescapeByte(c byte) []byte {
	switch c {
	case 'n':
		return []byte{'\n'}
	case 't':
		return []byte{'\t'}
	case '"':
		return []byte{'"'}
	case '\\':
		return []byte{'\\'}
	case '/':
		return []byte{'/'}
	default:
		return []byte{c}
	}
}
