// Package testwasm provides tiny hand-assembled core WebAssembly
// binaries for tests. Building them in code keeps the test suite free
// of checked-in fixtures and external toolchains.
package testwasm

// Header is the standard core module header: magic + version 1.
var Header = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

// Add returns a module exporting add(i32, i32) -> i32.
//
//	(module
//	  (func (export "add") (param i32 i32) (result i32)
//	    local.get 0
//	    local.get 1
//	    i32.add))
func Add() []byte {
	return concat(
		Header,
		// type section: (i32, i32) -> i32
		[]byte{0x01, 0x07, 0x01, 0x60, 0x02, 0x7F, 0x7F, 0x01, 0x7F},
		// function section: one func, type 0
		[]byte{0x03, 0x02, 0x01, 0x00},
		// export section: "add" -> func 0
		[]byte{0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00},
		// code section: local.get 0, local.get 1, i32.add
		[]byte{0x0A, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6A, 0x0B},
	)
}

// Spin returns a module exporting spin() that never returns.
//
//	(module
//	  (func (export "spin") (loop br 0)))
func Spin() []byte {
	return concat(
		Header,
		// type section: () -> ()
		[]byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00},
		// function section: one func, type 0
		[]byte{0x03, 0x02, 0x01, 0x00},
		// export section: "spin" -> func 0
		[]byte{0x07, 0x08, 0x01, 0x04, 's', 'p', 'i', 'n', 0x00, 0x00},
		// code section: loop br 0 end end
		[]byte{0x0A, 0x09, 0x01, 0x07, 0x00, 0x03, 0x40, 0x0C, 0x00, 0x0B, 0x0B},
	)
}

// AddSpin returns a module exporting both add(i32, i32) -> i32 and a
// spin() that never returns, for exercising recovery after a hung call.
func AddSpin() []byte {
	return concat(
		Header,
		// type section: (i32, i32) -> i32, () -> ()
		[]byte{0x01, 0x0B, 0x02,
			0x60, 0x02, 0x7F, 0x7F, 0x01, 0x7F,
			0x60, 0x00, 0x00},
		// function section: two funcs, types 0 and 1
		[]byte{0x03, 0x03, 0x02, 0x00, 0x01},
		// export section: "add" -> func 0, "spin" -> func 1
		[]byte{0x07, 0x0E, 0x02,
			0x03, 'a', 'd', 'd', 0x00, 0x00,
			0x04, 's', 'p', 'i', 'n', 0x00, 0x01},
		// code section: i32.add body, then loop br 0
		[]byte{0x0A, 0x11, 0x02,
			0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6A, 0x0B,
			0x07, 0x00, 0x03, 0x40, 0x0C, 0x00, 0x0B, 0x0B},
	)
}

// Importer returns a module that imports two WASI functions, a
// diagnostic-looking env function and an env memory, and exports run().
// It is structurally valid but not meant to be instantiated.
func Importer() []byte {
	wasi := name("wasi_snapshot_preview1")
	return concat(
		Header,
		// type section: (i32)->(), (i32,i32,i32,i32)->i32, (i32,i32)->(), ()->()
		[]byte{0x01, 0x15, 0x04,
			0x60, 0x01, 0x7F, 0x00,
			0x60, 0x04, 0x7F, 0x7F, 0x7F, 0x7F, 0x01, 0x7F,
			0x60, 0x02, 0x7F, 0x7F, 0x00,
			0x60, 0x00, 0x00},
		// import section: 4 imports
		concat(
			[]byte{0x02, 0x66, 0x04},
			wasi, name("proc_exit"), []byte{0x00, 0x00},
			wasi, name("fd_write"), []byte{0x00, 0x01},
			name("env"), name("log_message"), []byte{0x00, 0x02},
			name("env"), name("memory"), []byte{0x02, 0x00, 0x01},
		),
		// function section: one func, type 3
		[]byte{0x03, 0x02, 0x01, 0x03},
		// export section: "run" -> func 3 (after 3 imported funcs)
		[]byte{0x07, 0x07, 0x01, 0x03, 'r', 'u', 'n', 0x00, 0x03},
		// code section: empty body
		[]byte{0x0A, 0x04, 0x01, 0x02, 0x00, 0x0B},
	)
}

// BadMagic returns a payload with a corrupt magic number.
func BadMagic() []byte {
	return []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}
}

// FutureVersion returns a valid-magic payload with an unknown version.
func FutureVersion() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6D, 0x02, 0x00, 0x00, 0x00}
}

func name(s string) []byte {
	return append([]byte{byte(len(s))}, s...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
