package audio

// Drain reads from ch until it is closed, discarding all values. Use it when
// a cancelled consumer must still let the producing goroutine finish.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
