package platform

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// InjectHardwareTable installs a read-only `hardware` global whose functions
// build constraint tables, e.g. `when = hardware.is_64_bit()`.
//
// The helpers describe a platform, they never inspect the running machine, so
// a descriptor evaluates the same way on every host.
func InjectHardwareTable(L *lua.LState) error {
	hardwareTable := L.NewTable()

	for _, name := range ConstraintNames() {
		c, _ := NamedConstraint(name)
		L.SetField(hardwareTable, name, L.NewFunction(func(L *lua.LState) int {
			L.Push(constraintTable(L, c))
			return 1
		}))
	}

	// hardware.on{os = "darwin", arch = {"amd64", "arm64"}, bits = 64}
	L.SetField(hardwareTable, "on", L.NewFunction(func(L *lua.LState) int {
		spec := L.CheckTable(1)
		c, err := ConstraintFromTable(spec)
		if err != nil {
			L.RaiseError("hardware.on: %s", err.Error())
			return 0
		}
		L.Push(constraintTable(L, c))
		return 1
	}))

	L.SetGlobal("hardware", makeReadOnly(L, hardwareTable, "hardware"))
	return nil
}

// ConstraintFromTable reads os, arch and bits fields from a Lua table.
// os and arch accept either a string or a list of strings.
func ConstraintFromTable(tbl *lua.LTable) (Constraint, error) {
	var c Constraint
	var err error

	if c.OS, err = stringList(tbl.RawGetString("os")); err != nil {
		return Constraint{}, fmt.Errorf("os: %w", err)
	}
	if c.Arch, err = stringList(tbl.RawGetString("arch")); err != nil {
		return Constraint{}, fmt.Errorf("arch: %w", err)
	}

	switch bits := tbl.RawGetString("bits"); bits.Type() {
	case lua.LTNil:
	case lua.LTNumber:
		c.Bits = int(lua.LVAsNumber(bits))
	default:
		return Constraint{}, fmt.Errorf("bits: expected number, got %s", bits.Type())
	}

	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return Constraint{}, err
	}
	return c, nil
}

// constraintTable converts a constraint back into a plain Lua table.
func constraintTable(L *lua.LState, c Constraint) *lua.LTable {
	tbl := L.NewTable()
	if len(c.OS) > 0 {
		osList := L.NewTable()
		for _, os := range c.OS {
			osList.Append(lua.LString(os))
		}
		L.SetField(tbl, "os", osList)
	}
	if len(c.Arch) > 0 {
		archList := L.NewTable()
		for _, arch := range c.Arch {
			archList.Append(lua.LString(arch))
		}
		L.SetField(tbl, "arch", archList)
	}
	if c.Bits != 0 {
		L.SetField(tbl, "bits", lua.LNumber(c.Bits))
	}
	return tbl
}

// stringList accepts nil, a string or an array of strings.
func stringList(v lua.LValue) ([]string, error) {
	switch v.Type() {
	case lua.LTNil:
		return nil, nil
	case lua.LTString:
		return []string{v.String()}, nil
	case lua.LTTable:
		var out []string
		var bad lua.LValueType
		v.(*lua.LTable).ForEach(func(_, item lua.LValue) {
			if item.Type() != lua.LTString {
				bad = item.Type()
				return
			}
			out = append(out, item.String())
		})
		if bad != lua.LTNil {
			return nil, fmt.Errorf("expected strings, got %s", bad)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %s", v.Type())
	}
}

// makeReadOnly makes a Lua table read-only by creating a proxy table with a metatable.
// The proxy redirects reads to the original table but prevents all writes.
func makeReadOnly(L *lua.LState, table *lua.LTable, name string) *lua.LTable {
	mt := L.NewTable()

	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s table is read-only and cannot be modified", name)
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)

	return proxy
}
