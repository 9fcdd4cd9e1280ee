package monitor

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
)

// builders maps monitor type names to constructors. Each constructor decodes
// the raw parameters over that type's defaults, so configuration only needs
// to name the fields it changes.
var builders = map[string]func(params map[string]any, logger zerolog.Logger) (Monitor, error){
	"CCDMonitor": func(params map[string]any, logger zerolog.Logger) (Monitor, error) {
		cfg := DefaultCCDConfig()
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return NewCCDMonitor(cfg, logger)
	},
	"ClockRateMonitor": func(params map[string]any, logger zerolog.Logger) (Monitor, error) {
		cfg := DefaultClockRateConfig()
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return NewClockRateMonitor(cfg, logger)
	},
	"StationaryPositionMonitor": func(params map[string]any, logger zerolog.Logger) (Monitor, error) {
		cfg := DefaultStationaryPositionConfig()
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return NewStationaryPositionMonitor(cfg, logger)
	},
	"StationaryVelocityMonitor": func(params map[string]any, logger zerolog.Logger) (Monitor, error) {
		cfg := DefaultStationaryVelocityConfig()
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return NewStationaryVelocityMonitor(cfg, logger)
	},
	"DualAntennaDistanceMonitor": func(params map[string]any, logger zerolog.Logger) (Monitor, error) {
		cfg := DefaultDualAntennaDistanceConfig()
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return NewDualAntennaDistanceMonitor(cfg, logger)
	},
	"CnoDropJammingMonitor": func(params map[string]any, logger zerolog.Logger) (Monitor, error) {
		cfg := DefaultCnoDropConfig()
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return NewCnoDropJammingMonitor(cfg, logger)
	},
	"CnoThresholdJammingMonitor": func(params map[string]any, logger zerolog.Logger) (Monitor, error) {
		cfg := DefaultCnoThresholdConfig()
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return NewCnoThresholdJammingMonitor(cfg, logger)
	},
	"CnoSpoofingMonitor": func(params map[string]any, logger zerolog.Logger) (Monitor, error) {
		cfg := DefaultCnoSpoofingConfig()
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return NewCnoSpoofingMonitor(cfg, logger)
	},
}

// New builds a monitor by type name with the given parameters. Unknown
// names return ErrUnknownMonitor; unknown parameter fields are a decode
// error so typos fail loudly.
func New(name string, params map[string]any, logger zerolog.Logger) (Monitor, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMonitor, name)
	}
	m, err := build(params, logger)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", name, err)
	}
	return m, nil
}

// Types returns the registered monitor type names, sorted.
func Types() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decodeParams(params map[string]any, cfg any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}
