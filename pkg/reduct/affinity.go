package reduct

import stdruntime "runtime"

// goroutineID returns a unique identifier for the current goroutine.
// It parses the header of the runtime stack trace, which starts with
// "goroutine <id> ". This is an implementation detail used only to detect
// writes that bypass the store loop; it is never exposed.
func goroutineID() uint64 {
	var buf [64]byte
	n := stdruntime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ { // Skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
