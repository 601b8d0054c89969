package native

import (
	"reflect"

	"github.com/ebitengine/purego"
)

// newCallback is the callback factory of real builds.
func newCallback(fn any) uintptr {
	return purego.NewCallback(fn)
}

// bind resolves every symbol of lib through resolve before registering any
// of them, so a missing required symbol leaves lib untouched.
func bind(lib *Lib, resolve func(name string) (uintptr, bool)) *LinkError {
	v := reflect.ValueOf(lib).Elem()
	t := v.Type()
	addrs := make([]uintptr, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("maa")
		if tag == "-" || f.Type.Kind() != reflect.Func {
			continue
		}
		addr, ok := resolve(f.Name)
		if !ok {
			if tag == "optional" {
				continue
			}
			return &LinkError{Symbol: f.Name, Err: errSymbolNotFound}
		}
		addrs[i] = addr
	}
	for i, addr := range addrs {
		if addr == 0 {
			continue
		}
		purego.RegisterFunc(v.Field(i).Addr().Interface(), addr)
	}
	return nil
}
