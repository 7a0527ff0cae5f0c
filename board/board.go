// Package board loads the board description: clocking, flash part
// parameters and the interrupt line table. A default description for the
// simulated SoC is embedded; a YAML file can override it for other
// targets.
package board

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/consanii/x-heep/fic"
)

//go:embed simulation.yaml
var rawDefault []byte

// FlashParams carry the device-specific constants of the attached flash
// part.
type FlashParams struct {
	// MaxClockHz bounds the SPI clock; the driver derives the clock
	// divider from it and the core clock.
	MaxClockHz uint32 `yaml:"maxClockHz"`
	// DummyClocks is the read-latency cycle count required after a quad
	// address phase. The physical W25Q128JW needs 4; the simulation flash
	// model needs 8.
	DummyClocks int    `yaml:"dummyClocks"`
	PageSize    int    `yaml:"pageSize"`
	SectorSize  int    `yaml:"sectorSize"`
	SizeBytes   uint32 `yaml:"sizeBytes"`
}

// InterruptLine is the YAML shape of one fic.Line.
type InterruptLine struct {
	Name      string `yaml:"name"`
	EnableReg uint32 `yaml:"enableReg"`
	Bit       uint8  `yaml:"bit"`
	CoreBit   uint8  `yaml:"coreBit"`
}

type Config struct {
	Name           string          `yaml:"name"`
	CoreClockHz    uint32          `yaml:"coreClockHz"`
	TickHz         uint64          `yaml:"tickHz"`
	Flash          FlashParams     `yaml:"flash"`
	InterruptLines []InterruptLine `yaml:"interruptLines"`
}

// Default returns the embedded simulation board description.
func Default() Config {
	cfg, err := parse(rawDefault)
	if err != nil {
		// The embedded description is validated by tests; failing to
		// parse it is a build defect, not a runtime condition.
		panic(err)
	}
	return cfg
}

// Load reads a board description from a YAML file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("board %s: %w", path, err)
	}
	return cfg, nil
}

func parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.CoreClockHz == 0 {
		return Config{}, fmt.Errorf("board %q: core clock is zero", cfg.Name)
	}
	if cfg.Flash.PageSize == 0 || cfg.Flash.SectorSize == 0 {
		return Config{}, fmt.Errorf("board %q: incomplete flash parameters", cfg.Name)
	}
	return cfg, nil
}

// FICLines converts the interrupt table to the controller's line type.
func (c Config) FICLines() []fic.Line {
	lines := make([]fic.Line, len(c.InterruptLines))
	for i, ln := range c.InterruptLines {
		lines[i] = fic.Line{
			Name:      ln.Name,
			EnableReg: ln.EnableReg,
			Bit:       ln.Bit,
			CoreBit:   ln.CoreBit,
		}
	}
	return lines
}
