package main

/*
#cgo windows LDFLAGS: -lpsapi
#cgo linux LDFLAGS: -ldl

#ifdef _WIN32
#define WIN32_LEAN_AND_MEAN
#include <windows.h>
#include <stdlib.h>

static char* module_path() {
	HMODULE mod = NULL;
	if (!GetModuleHandleExA(GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS |
	                        GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT,
	                        (LPCSTR)module_path, &mod)) {
		return NULL;
	}
	DWORD size = MAX_PATH;
	char* buf = NULL;
	for (;;) {
		char* grown = (char*)realloc(buf, size);
		if (!grown) {
			free(buf);
			return NULL;
		}
		buf = grown;
		DWORD n = GetModuleFileNameA(mod, buf, size);
		if (n == 0) {
			free(buf);
			return NULL;
		}
		if (n < size) {
			return buf;
		}
		size *= 2;
	}
}

#else

#define _GNU_SOURCE
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>

static char* module_path() {
	Dl_info info;
	if (dladdr((void*)module_path, &info) == 0 || info.dli_fname == NULL) {
		return NULL;
	}
	return strdup(info.dli_fname);
}

#endif
*/
import "C"
import (
	"os"
	"path/filepath"
	"unsafe"
)

// moduleFolder returns the folder the library was loaded from, falling back
// to the working directory.
func moduleFolder() string {
	p := C.module_path()
	if p != nil {
		defer C.free(unsafe.Pointer(p))
		if path := C.GoString(p); path != "" {
			return filepath.Dir(path)
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
