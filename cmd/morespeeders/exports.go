package main

/*
#include <stdlib.h>
#include <string.h>
*/
import "C"
import (
	"unsafe"

	"github.com/morespeeders/extension/pkg/hostbridge"
)

// called by the host once after loading the library
//
//export ExtensionVersion
func ExtensionVersion(output *C.char, outputsize C.size_t) {
	reply(bridge().Version(), output, outputsize)
}

// called by the host in the form "CMD" or "CMD|arg|arg"
//
//export ExtensionCall
func ExtensionCall(output *C.char, outputsize C.size_t, input *C.char) {
	reply(bridge().Call(C.GoString(input)), output, outputsize)
}

// called by the host with a command and an argument vector
//
//export ExtensionArgs
func ExtensionArgs(output *C.char, outputsize C.size_t, input *C.char, argv **C.char, argc C.int) {
	reply(bridge().CallArgs(C.GoString(input), parseArgsFromC(argv, argc)), output, outputsize)
}

// called by the host shim with a pointer to its native invoker:
// int invoke(const char* name, const char* argsJSON, char* out, size_t outsize)
//
//export RegisterNativeInvoker
func RegisterNativeInvoker(fn unsafe.Pointer) {
	bridge()
	hostWorld.SetInvoker(newCInvoker(fn))
	Logger().Info("Native invoker registered")
}

func parseArgsFromC(argv **C.char, argc C.int) []string {
	if argc <= 0 || argv == nil {
		return nil
	}
	ptrs := unsafe.Slice(argv, int(argc))
	out := make([]string, len(ptrs))
	for i, p := range ptrs {
		out[i] = C.GoString(p)
	}
	return out
}

// reply copies a response into the host's output buffer, truncating it to fit.
func reply(response string, output *C.char, outputsize C.size_t) {
	response = hostbridge.Truncate(response, int(outputsize))
	if outputsize == 0 {
		return
	}
	result := C.CString(response)
	defer C.free(unsafe.Pointer(result))
	C.memmove(unsafe.Pointer(output), unsafe.Pointer(result), C.strlen(result)+1)
}
