package stdlib

import (
	"fmt"

	"github.com/fmaggi/matiria/internal/vmheap"
)

// mtrPrint is the native `fn print(Any v);`, grounded on Matiria/stl/mtr_io.c's
// mtr_print: write the argument's print_value rendering followed by a
// newline, return nil. vmheap.Value.String already implements
// print_value's per-type formatting (Int decimal, Float %f, String
// single-quoted, Array/Map/Struct/Function/NativeFn delegating to their
// Object's own String), so there is nothing left to format here.
func mtrPrint(args []vmheap.Value) (vmheap.Value, error) {
	fmt.Println(args[0].String())
	return vmheap.Nil, nil
}
