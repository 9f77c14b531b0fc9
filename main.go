package main

import (
	"flag"
	"fmt"
	"os"

	"lama/vm"
)

var (
	debugFlag = flag.Bool("debug", false, "print a fault's fatal error with its bytecode offset and exit non-zero")
	dumpFlag  = flag.Bool("dump", false, "disassemble the bytecode file instead of running it")
	stackFlag = flag.Int("stack", 0, "managed stack capacity in words (0 = default)")
)

func init() {
	flag.Parse()
}

func main() {
	args := os.Args[len(os.Args)-flag.NArg():]
	if len(args) != 1 {
		fmt.Println("Usage: lama [-dump] [-stack N] <bytecode-file>")
		os.Exit(2)
	}

	img, err := vm.LoadFile(args[0])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *dumpFlag {
		fmt.Print(vm.Disassemble(img))
		return
	}

	engine := vm.NewEngine(img, *stackFlag, os.Stdin, os.Stdout)

	defer func() {
		if r := recover(); r != nil {
			fmt.Println(r)
			os.Exit(1)
		}
	}()

	_, runErr := engine.Run()
	if runErr != nil {
		if *debugFlag {
			fmt.Println(runErr)
		}
		os.Exit(1)
	}
}
