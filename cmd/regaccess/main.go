// Command regaccess is a reference CLI over the registry/device/accessor
// stack: resolve an alias through a DMap file, open the device it names,
// and read or write one register.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/accessor"
	"github.com/chimeradev/regaccess/backend"
	"github.com/chimeradev/regaccess/backend/dummy"
	"github.com/chimeradev/regaccess/backend/logicalname"
	"github.com/chimeradev/regaccess/backend/pcie"
	"github.com/chimeradev/regaccess/backend/remote"
	"github.com/chimeradev/regaccess/backend/serial"
	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/device"
	"github.com/chimeradev/regaccess/registry"
)

var (
	dmapPath = flag.String("dmap", "", "Path to a DMap file mapping aliases to devices.")
	alias    = flag.String("device", "", "Device alias to open, as named in the DMap file.")
	register = flag.String("register", "", "Register path to access, e.g. /board/temperature.")
	op       = flag.String("op", "read", "Operation: read or write.")
	value    = flag.Int64("value", 0, "Value to write, when -op=write.")
	raw      = flag.Bool("raw", false, "Access the register's raw transport word instead of its cooked value.")
)

func newFactory() *backend.Factory {
	f := backend.NewFactory()
	f.Register("dummy", func(uri string, cat *catalogue.Catalogue) (backend.Backend, error) {
		return dummy.New(uri, cat, map[int]int64{0: 1 << 20}), nil
	})
	f.Register("pcie", func(uri string, cat *catalogue.Catalogue) (backend.Backend, error) {
		return pcie.New(uri, cat, map[int]int64{0: 1 << 20})
	})
	f.Register("serial", func(uri string, cat *catalogue.Catalogue) (backend.Backend, error) {
		return serial.New(uri, 115200, cat), nil
	})
	f.Register("remote", func(uri string, cat *catalogue.Catalogue) (backend.Backend, error) {
		return remote.New(uri, cat), nil
	})
	f.Register("logicalname", func(uri string, cat *catalogue.Catalogue) (backend.Backend, error) {
		return logicalname.New(uri, cat, nil), nil
	})
	return f
}

func main() {
	flag.Parse()

	if *dmapPath == "" || *alias == "" || *register == "" {
		fmt.Println("usage: regaccess -dmap <file> -device <alias> -register <path> [-op read|write] [-value N] [-raw]")
		os.Exit(1)
	}

	ctx := context.Background()
	env := registry.NewEnvironment(newFactory())
	if err := env.AddDMapFile(*dmapPath); err != nil {
		fmt.Printf("cannot load dmap file: %v\n", err)
		os.Exit(1)
	}

	dev, err := env.OpenDevice(ctx, *alias)
	if err != nil {
		fmt.Printf("cannot open device %q: %v\n", *alias, err)
		os.Exit(1)
	}
	defer dev.Close(ctx)

	if *raw {
		runAccess(ctx, dev, device.GetScalarAccessor[uint32], accessmode.Raw, uint32(*value))
		return
	}
	runAccess(ctx, dev, device.GetScalarAccessor[int64], 0, *value)
}

func runAccess[T interface {
	int64 | uint32
}](ctx context.Context, dev *device.Device, get func(*device.Device, string, accessmode.Flags) (*accessor.ScalarAccessor[T], error), flags accessmode.Flags, writeValue T) {
	acc, err := get(dev, *register, flags)
	if err != nil {
		fmt.Printf("cannot get accessor for %q: %v\n", *register, err)
		os.Exit(1)
	}

	switch *op {
	case "read":
		got, err := acc.Read(ctx)
		if err != nil {
			fmt.Printf("read failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s = %d\n", *register, got)
	case "write":
		if err := acc.Write(ctx, writeValue); err != nil {
			fmt.Printf("write failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s <- %d\n", *register, writeValue)
	default:
		fmt.Printf("unknown -op %q, want read or write\n", *op)
		os.Exit(1)
	}
}
