// Command chentry rewrites the entry point recorded in an ELF64
// executable's header.
//
// Grounded on the teacher's kernel/chentry.go build tool, which does the
// same job with raw os.Args parsing; this version swaps that for a cobra
// command the way the rest of this tree's command-line surface is built.
package main

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func chkELF(eh *elf.FileHeader) error {
	if eh.Ident[0] != 0x7f || string(eh.Ident[1:4]) != "ELF" {
		return fmt.Errorf("not an elf")
	}
	if eh.Ident[elf.EI_DATA] != elf.ELFDATA2LSB {
		return fmt.Errorf("not little-endian")
	}
	if eh.Type != elf.ET_EXEC {
		return fmt.Errorf("not an executable elf")
	}
	if eh.Machine != elf.EM_X86_64 {
		return fmt.Errorf("not a 64 bit elf")
	}
	return nil
}

func parseAddr(s string) (uint64, error) {
	a, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return a, nil
}

func run(filename, addrStr string) error {
	addr, err := parseAddr(addrStr)
	if err != nil {
		return err
	}
	if addr>>32 != 0 {
		return fmt.Errorf("entry is a 64-bit pointer; bootloader will perish")
	}

	f, err := os.OpenFile(filename, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		return err
	}
	if err := chkELF(&ef.FileHeader); err != nil {
		return err
	}

	fmt.Printf("using address 0x%x\n", addr)
	ef.FileHeader.Entry = addr

	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	return binary.Write(f, binary.LittleEndian, &ef.FileHeader)
}

func main() {
	cmd := &cobra.Command{
		Use:   "chentry <filename> <addr>",
		Short: "Rewrite the ELF entry point of a statically linked binary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1])
		},
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
