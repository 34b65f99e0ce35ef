package main

/*
#include <stdlib.h>

typedef int (*native_invoker)(const char* name, const char* args, char* out, size_t outsize);

static int call_native(void* fn, const char* name, const char* args, char* out, size_t outsize) {
	return ((native_invoker)fn)(name, args, out, outsize);
}
*/
import "C"
import (
	"encoding/json"
	"fmt"
	"sync"
	"unsafe"
)

// nativeResultSize is the buffer handed to the host for each native result.
const nativeResultSize = 4096

// cInvoker calls natives through the function pointer the host registered.
// The host invoker is not reentrant, so calls are serialized.
type cInvoker struct {
	mu  sync.Mutex
	fn  unsafe.Pointer
	out *C.char
}

func newCInvoker(fn unsafe.Pointer) *cInvoker {
	return &cInvoker{fn: fn, out: (*C.char)(C.malloc(nativeResultSize))}
}

// Invoke returns the host's JSON result. A negative return code is an error;
// otherwise the output buffer holds a NUL-terminated result.
func (c *cInvoker) Invoke(name string, args json.RawMessage) (json.RawMessage, error) {
	if c.fn == nil {
		return nil, fmt.Errorf("%s: invoker is nil", name)
	}

	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	cArgs := C.CString(string(args))
	defer C.free(unsafe.Pointer(cArgs))

	c.mu.Lock()
	defer c.mu.Unlock()

	*c.out = 0
	rc := C.call_native(c.fn, cName, cArgs, c.out, nativeResultSize)
	if rc < 0 {
		return nil, fmt.Errorf("%s: host returned %d", name, int(rc))
	}
	return json.RawMessage(C.GoString(c.out)), nil
}
