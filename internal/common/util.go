package common

// WipeByteArray overwrites buf with zeros. Safe on nil.
func WipeByteArray(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
