package vm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"time"
)

// ---------------------------------------------------------------------------
// System Primitives
// ---------------------------------------------------------------------------

func (u *Universe) installSystemPrimitives(c *Class) {
	// load: - load a class from the classpath, answering nil if absent
	definePrimitive(c, "load:", binary(func(_, arg Value) (Value, error) {
		name, err := asSymbol("load:", arg)
		if err != nil {
			return nil, err
		}
		class, err := u.LoadClass(name)
		if err != nil {
			return nil, err
		}
		if class == nil {
			return u.Nil, nil
		}
		return class, nil
	}))

	// exit: - hand the status to the exit hook
	definePrimitive(c, "exit:", binary(func(recv, arg Value) (Value, error) {
		code, err := asInteger("exit:", arg)
		if err != nil {
			return nil, err
		}
		if err := u.Exit(int(code)); err != nil {
			return nil, err
		}
		return recv, nil
	}))

	// global: - the global bound to a name, or nil
	definePrimitive(c, "global:", binary(func(_, arg Value) (Value, error) {
		name, err := asSymbol("global:", arg)
		if err != nil {
			return nil, err
		}
		if v, ok := u.Global(name); ok {
			return v, nil
		}
		return u.Nil, nil
	}))

	// global:put: - bind a global
	definePrimitive(c, "global:put:", ternary(func(recv, arg, val Value) (Value, error) {
		name, err := asSymbol("global:put:", arg)
		if err != nil {
			return nil, err
		}
		u.SetGlobal(name, val)
		return recv, nil
	}))

	// printString: / printNewline - standard output
	definePrimitive(c, "printString:", binary(func(recv, arg Value) (Value, error) {
		s, err := asText("printString:", arg)
		if err != nil {
			return nil, err
		}
		fmt.Fprint(u.out, s)
		return recv, nil
	}))
	definePrimitive(c, "printNewline", unary(func(recv Value) (Value, error) {
		fmt.Fprintln(u.out)
		return recv, nil
	}))

	// errorPrint: / errorPrintln: - error output
	definePrimitive(c, "errorPrint:", binary(func(recv, arg Value) (Value, error) {
		s, err := asText("errorPrint:", arg)
		if err != nil {
			return nil, err
		}
		fmt.Fprint(u.errOut, s)
		return recv, nil
	}))
	definePrimitive(c, "errorPrintln:", binary(func(recv, arg Value) (Value, error) {
		s, err := asText("errorPrintln:", arg)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(u.errOut, s)
		return recv, nil
	}))

	// time - milliseconds since the universe was created
	definePrimitive(c, "time", unary(func(Value) (Value, error) {
		return Integer(time.Since(u.start).Milliseconds()), nil
	}))

	// ticks - microseconds since the universe was created
	definePrimitive(c, "ticks", unary(func(Value) (Value, error) {
		return Integer(time.Since(u.start).Microseconds()), nil
	}))

	// fullGC - run the host collector
	definePrimitive(c, "fullGC", unary(func(Value) (Value, error) {
		runtime.GC()
		return u.True, nil
	}))

	// gcStats - #(collections pauseMillis allocatedBytes)
	definePrimitive(c, "gcStats", unary(func(Value) (Value, error) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return NewArrayOf(
			Integer(ms.NumGC),
			Integer(int64(ms.PauseTotalNs/uint64(time.Millisecond))),
			Integer(int64(ms.TotalAlloc)),
		), nil
	}))

	// loadFile: - file contents as a String, or nil if it cannot be read
	definePrimitive(c, "loadFile:", binary(func(_, arg Value) (Value, error) {
		path, err := asText("loadFile:", arg)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				u.log.Warning("loadFile: failed", "universe", u.ID, "path", path, "error", err)
			}
			return u.Nil, nil
		}
		return String(data), nil
	}))

	// printStackTrace - the frame chain to error output
	definePrimitive(c, "printStackTrace", func(interp *Interpreter, f *Frame) error {
		f.Pop()
		interp.PrintStackTrace(u.errOut)
		f.Push(u.True)
		return nil
	})
}
