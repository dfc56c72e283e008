//go:build race

package race

import (
	"runtime"
	"unsafe"
)

func (t Token) Release() {
	runtime.RaceRelease(unsafe.Pointer(t.elem))
}

func (t Token) Acquire() {
	runtime.RaceAcquire(unsafe.Pointer(t.elem))
}
