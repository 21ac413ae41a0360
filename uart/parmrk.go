package uart

const markByte = 0xFF

type markState uint8

// After markEscape one 0xFF was seen, after markFault 0xFF 0x00 and the next byte is
// the faulty one.
const (
	markNone markState = iota
	markEscape
	markFault
)

// markDecoder strips PARMRK sequences from the received stream.
//
// With PARMRK the line discipline sends a byte received with a parity or framing error
// as 0xFF 0x00 x, and a valid 0xFF as 0xFF 0xFF. Sequences may be split across reads,
// so the decoder keeps its state between calls.
type markDecoder struct {
	state markState
}

// decode appends the payload bytes of src to dst and returns the result along with the
// number of faulty bytes removed.
func (d *markDecoder) decode(dst, src []byte) ([]byte, int) {
	faults := 0

	for _, b := range src {
		switch d.state {
		case markNone:
			if b == markByte {
				d.state = markEscape
				continue
			}
			dst = append(dst, b)

		case markEscape:
			switch b {
			case markByte:
				dst = append(dst, markByte)
				d.state = markNone
			case 0x00:
				d.state = markFault
			default:
				// not a PARMRK sequence
				dst = append(dst, markByte, b)
				d.state = markNone
			}

		case markFault:
			faults++
			d.state = markNone
		}
	}

	return dst, faults
}

func (d *markDecoder) reset() {
	d.state = markNone
}
