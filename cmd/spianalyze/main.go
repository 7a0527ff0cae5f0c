// Command spianalyze processes binary Saleae digital capture files of
// the SPI flash bus and decodes each chip-select window into a flash
// command: opcode, address for the addressed commands, and payload.
// Only standard-speed traffic is decodable from a single data line;
// quad-lane segments show up as their opcode with undecoded payload.
package main

import (
	"fmt"
	"os"

	"github.com/soypat/saleae"
	"github.com/soypat/saleae/analyzers"
	"github.com/spf13/cobra"
)

var (
	flagSDO      string
	flagCS       string
	flagCLK      string
	flagOutput   string
	flagOmitData bool
	flagMaxData  int
)

func main() {
	root := &cobra.Command{
		Use:           "spianalyze",
		Short:         "Decode SPI flash commands from Saleae digital captures",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVar(&flagSDO, "f-sd", "digital_1.bin", "input filename: SPI SDO data")
	root.Flags().StringVar(&flagCS, "f-cs", "digital_0.bin", "input filename: SPI CS data")
	root.Flags().StringVar(&flagCLK, "f-clk", "digital_2.bin", "input filename: SPI CLK data")
	root.Flags().StringVar(&flagOutput, "o-cmd", "commands.txt", "output filename for decoded commands")
	root.Flags().BoolVar(&flagOmitData, "omit-data", false, "omit payload bytes in output")
	root.Flags().IntVar(&flagMaxData, "max-data", 64, "payload bytes printed per command, 0 for all")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "spianalyze:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	sdo, err := opendigital(flagSDO)
	if err != nil {
		return err
	}
	cs, err := opendigital(flagCS)
	if err != nil {
		return err
	}
	clk, err := opendigital(flagCLK)
	if err != nil {
		return err
	}

	spi := analyzers.SPI{}
	txs, err := spi.Scan(clk, cs, sdo, sdo)
	if err != nil {
		return err
	}

	fp, err := os.Create(flagOutput)
	if err != nil {
		return err
	}
	defer fp.Close()

	for _, tx := range txs {
		c := decode(tx.SDO)
		fmt.Fprintf(fp, "t=%f\t%s", tx.StartTime(), c.String())
		if !flagOmitData && len(c.Data) > 0 {
			data := c.Data
			if flagMaxData > 0 && len(data) > flagMaxData {
				fmt.Fprintf(fp, "\tdata=%#x... (%d more)", data[:flagMaxData], len(data)-flagMaxData)
			} else {
				fmt.Fprintf(fp, "\tdata=%#x", data)
			}
		}
		fmt.Fprintln(fp)
	}
	return nil
}

func opendigital(filename string) (*saleae.DigitalFile, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return saleae.ReadDigitalFile(fp)
}

// flashCmd is one decoded chip-select window.
type flashCmd struct {
	Op      byte
	HasAddr bool
	Addr    uint32
	Data    []byte
}

func (c flashCmd) String() string {
	if c.HasAddr {
		return fmt.Sprintf("op=%-18s addr=%#08x len=%4d", opName(c.Op), c.Addr, len(c.Data))
	}
	return fmt.Sprintf("op=%-18s len=%4d", opName(c.Op), len(c.Data))
}

// decode splits a chip-select window into opcode, address and payload.
// Address bytes are on the wire most significant first.
func decode(b []byte) flashCmd {
	if len(b) == 0 {
		return flashCmd{Op: 0}
	}
	c := flashCmd{Op: b[0], Data: b[1:]}
	switch c.Op {
	case 0x02, 0x32, 0x03, 0xeb, 0x20, 0x52, 0xd8:
		if len(b) >= 4 {
			c.HasAddr = true
			c.Addr = uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
			c.Data = b[4:]
		}
	}
	return c
}

func opName(op byte) string {
	switch op {
	case 0x02:
		return "page-program"
	case 0x32:
		return "page-program-quad"
	case 0x03:
		return "read"
	case 0xeb:
		return "fast-read-quad-io"
	case 0x05:
		return "read-status-1"
	case 0x35:
		return "read-status-2"
	case 0x31:
		return "write-status-2"
	case 0x06:
		return "write-enable"
	case 0x20:
		return "erase-4k"
	case 0x52:
		return "erase-32k"
	case 0xd8:
		return "erase-64k"
	case 0xc7:
		return "erase-chip"
	case 0x66:
		return "reset-enable"
	case 0x99:
		return "reset"
	case 0xb9:
		return "power-down"
	case 0xab:
		return "release-power-down"
	case 0xff:
		return "settle"
	}
	return fmt.Sprintf("%#02x", op)
}
