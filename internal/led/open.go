package led

import (
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"
)

const (
	KindSPI     = "spi"
	KindConsole = "console"
	KindSim     = "sim"
)

// Options selects and configures a driver.
type Options struct {
	Kind    string
	Count   int
	SPIDev  string
	SPIFreq physic.Frequency
}

// Open returns the requested driver and the name of the one actually in
// use. A strip that cannot be opened falls back to the console so the device
// still shows something.
func Open(o Options) (Driver, string) {
	switch o.Kind {
	case KindSim:
		return NewSim(), KindSim
	case KindConsole:
		return NewConsole(o.Count, 0), KindConsole
	case KindSPI:
		drv, err := OpenNRZ(o.SPIDev, o.Count, o.SPIFreq)
		if err != nil {
			log.Warn().Err(err).
				Str("driver", KindSPI).
				Str("dev", o.SPIDev).
				Stringer("freq", o.SPIFreq).
				Msg("SPI init failed; falling back to console")
			return NewConsole(o.Count, 0), KindConsole
		}
		log.Info().Str("dev", drv.String()).Int("count", o.Count).Msg("spi strip ready")
		return drv, KindSPI
	default:
		log.Warn().Str("driver", o.Kind).Msg("unknown driver; using sim")
		return NewSim(), KindSim
	}
}
