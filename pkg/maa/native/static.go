//go:build maa_static && cgo && (linux || darwin)

package native

// Static mode: the OS loader resolves MaaFramework at process start and
// symbols are looked up in the process image on first use. A missing symbol
// surfaces as a LinkError from the first API call.

/*
#cgo linux LDFLAGS: -Wl,--no-as-needed -lMaaFramework -lMaaToolkit
#cgo darwin LDFLAGS: -lMaaFramework -lMaaToolkit
*/
import "C"

import "github.com/ebitengine/purego"

func init() {
	staticResolve = func() (*Lib, error) {
		lib := &Lib{Path: "static", NewCallback: newCallback}
		if lerr := bind(lib, func(name string) (uintptr, bool) {
			addr, err := purego.Dlsym(purego.RTLD_DEFAULT, name)
			return addr, err == nil && addr != 0
		}); lerr != nil {
			lerr.Path = "static"
			return nil, lerr
		}
		return lib, nil
	}
}
