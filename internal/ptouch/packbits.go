package ptouch

// packBits run-length compresses p with the classic Apple PackBits scheme:
// a header byte of 0..127 means "copy the next n+1 bytes literally", a
// header of 129..255 (interpreted as 257-n) means "repeat the next byte".
// 0x80 is never emitted. Runs and literals each cap at 128 bytes.
func packBits(p []byte) []byte {
	var out []byte
	i := 0
	for i < len(p) {
		run := runLength(p[i:])
		if run >= 2 {
			out = append(out, byte(257-run), p[i])
			i += run
			continue
		}

		// Collect literals until the next run of at least 3 bytes, or a
		// trailing pair; a lone pair inside literals is cheaper left
		// literal than split into a run.
		start := i
		for i < len(p) && i-start < 128 {
			r := runLength(p[i:])
			if r >= 3 || (r == 2 && i+r == len(p)) {
				break
			}
			i++
		}
		out = append(out, byte(i-start-1))
		out = append(out, p[start:i]...)
	}
	return out
}

// runLength counts the leading repeats of p[0], capped at 128.
func runLength(p []byte) int {
	n := 1
	for n < len(p) && n < 128 && p[n] == p[0] {
		n++
	}
	return n
}
