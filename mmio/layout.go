package mmio

import (
	"fmt"
	"reflect"
	"strings"
)

// Register names one 32-bit register of a block and its byte offset.
type Register struct {
	Name   string
	Offset uintptr
}

var u32Type = reflect.TypeOf(U32{})

// Layout lists the registers of the register block struct pointed to by
// block, in address order. Reserved padding (blank fields) is skipped and
// arrays of registers are expanded as NAME[i]. Fields of any other type
// cause a panic; register blocks contain only registers and padding.
func Layout(block any) []Register {
	t := reflect.TypeOf(block)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("mmio: Layout of non-struct %v", t))
	}
	var regs []Register
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == "_" {
			continue
		}
		switch {
		case isRegister(f.Type):
			regs = append(regs, Register{Name: f.Name, Offset: f.Offset})
		case f.Type.Kind() == reflect.Array && isRegister(f.Type.Elem()):
			for j := 0; j < f.Type.Len(); j++ {
				regs = append(regs, Register{
					Name:   fmt.Sprintf("%s[%d]", f.Name, j),
					Offset: f.Offset + uintptr(j)*f.Type.Elem().Size(),
				})
			}
		default:
			panic(fmt.Sprintf("mmio: field %s.%s is not a register", t.Name(), f.Name))
		}
	}
	return regs
}

// Lookup returns the offset of the register called name in block.
// Names are matched case-insensitively.
func Lookup(block any, name string) (uintptr, bool) {
	for _, r := range Layout(block) {
		if strings.EqualFold(r.Name, name) {
			return r.Offset, true
		}
	}
	return 0, false
}

func isRegister(t reflect.Type) bool {
	if t == u32Type {
		return true
	}
	// R32[T] instantiations share U32's layout.
	return t.Kind() == reflect.Struct &&
		t.PkgPath() == u32Type.PkgPath() &&
		strings.HasPrefix(t.Name(), "R32[") &&
		t.Size() == u32Type.Size()
}
