package crypto

// Zero overwrites key material in place. Best effort only: the runtime may
// have copied the bytes, but cached keys and retired secrets go through here.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
