package faultspace

import "golang.org/x/exp/constraints"

func Align[I constraints.Integer](a, b I) I {
	return (a + b - 1) &^ (b - 1)
}

// byteCount is the number of fault space bytes a value of the given bit
// width occupies.
func byteCount[I constraints.Unsigned](width I) I {
	return Align(width, 8) / 8
}
