// Package config loads the enumerated SOME/IP stack options of spec.md §6
// from an INI file, the way pkg/od/parser_v1.go loads an EDS (also an INI
// document, via gopkg.in/ini.v1) into a typed in-memory structure: walk
// known keys, parse with explicit defaults, validate ranges.
package config

import (
	"fmt"
	"time"

	"gopkg.in/ini.v1"
)

// SD holds the [sd] section: multicast/unicast addressing plus timing.
type SD struct {
	MulticastAddress string
	MulticastPort    uint16
	UnicastAddress   string
	UnicastPort      uint16

	InitialDelay        time.Duration
	RepetitionBaseDelay time.Duration
	RepetitionMax       time.Duration
	CyclicOfferDelay    time.Duration
}

// TP holds the [tp] section: segmentation and reassembly limits.
type TP struct {
	MaxSegmentSize         int
	MaxMessageSize         int
	MaxConcurrentTransfers int
	ReassemblyTimeout      time.Duration
}

// Config is the fully-resolved configuration, defaults applied, per
// spec.md §6's enumerated option list.
type Config struct {
	SD               SD
	TP               TP
	InterfaceVersion uint8
	SessionClientId  uint16
}

// Default returns the configuration spec.md and vsomeip convention imply
// when no file overrides them.
func Default() Config {
	return Config{
		SD: SD{
			MulticastAddress:    "224.244.224.245",
			MulticastPort:       30490,
			UnicastAddress:      "0.0.0.0",
			UnicastPort:         30490,
			InitialDelay:        200 * time.Millisecond,
			RepetitionBaseDelay: 200 * time.Millisecond,
			RepetitionMax:       3 * time.Second,
			CyclicOfferDelay:    2 * time.Second,
		},
		TP: TP{
			MaxSegmentSize:         1392,
			MaxMessageSize:         1 << 20,
			MaxConcurrentTransfers: 16,
			ReassemblyTimeout:      5 * time.Second,
		},
		InterfaceVersion: 1,
		SessionClientId:  1,
	}
}

// Load reads file (path, []byte, or io.Reader - anything ini.Load
// accepts) and overlays it onto Default(). Unset keys keep their default;
// present keys are range-validated.
func Load(file any) (Config, error) {
	cfg := Default()

	doc, err := ini.Load(file)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	if sd, err := doc.GetSection("sd"); err == nil {
		if err := loadSD(sd, &cfg.SD); err != nil {
			return cfg, err
		}
	}
	if tp, err := doc.GetSection("tp"); err == nil {
		if err := loadTP(tp, &cfg.TP); err != nil {
			return cfg, err
		}
	}
	if general, err := doc.GetSection(ini.DefaultSection); err == nil {
		if key, err := general.GetKey("interface_version"); err == nil {
			v, err := key.Uint()
			if err != nil || v > 0xFF {
				return cfg, fmt.Errorf("config: interface_version out of range: %v", key.Value())
			}
			cfg.InterfaceVersion = uint8(v)
		}
	}
	if session, err := doc.GetSection("session"); err == nil {
		if key, err := session.GetKey("client_id"); err == nil {
			v, err := key.Uint()
			if err != nil || v > 0xFFFF {
				return cfg, fmt.Errorf("config: session.client_id out of range: %v", key.Value())
			}
			cfg.SessionClientId = uint16(v)
		}
	}

	return cfg, cfg.Validate()
}

func loadSD(section *ini.Section, sd *SD) error {
	if key, err := section.GetKey("multicast_address"); err == nil {
		sd.MulticastAddress = key.String()
	}
	if key, err := section.GetKey("multicast_port"); err == nil {
		v, err := key.Uint()
		if err != nil || v > 0xFFFF {
			return fmt.Errorf("config: sd.multicast_port out of range: %v", key.Value())
		}
		sd.MulticastPort = uint16(v)
	}
	if key, err := section.GetKey("unicast_address"); err == nil {
		sd.UnicastAddress = key.String()
	}
	if key, err := section.GetKey("unicast_port"); err == nil {
		v, err := key.Uint()
		if err != nil || v > 0xFFFF {
			return fmt.Errorf("config: sd.unicast_port out of range: %v", key.Value())
		}
		sd.UnicastPort = uint16(v)
	}

	durations := []struct {
		keyName string
		dst     *time.Duration
	}{
		{"initial_delay", &sd.InitialDelay},
		{"repetition_base_delay", &sd.RepetitionBaseDelay},
		{"repetition_max", &sd.RepetitionMax},
		{"cyclic_offer_delay", &sd.CyclicOfferDelay},
	}
	for _, d := range durations {
		if key, err := section.GetKey(d.keyName); err == nil {
			ms, err := key.Uint()
			if err != nil {
				return fmt.Errorf("config: sd.%s: %w", d.keyName, err)
			}
			*d.dst = time.Duration(ms) * time.Millisecond
		}
	}
	return nil
}

func loadTP(section *ini.Section, tp *TP) error {
	if key, err := section.GetKey("max_segment_size"); err == nil {
		v, err := key.Int()
		if err != nil || v <= 0 || v%16 != 0 {
			return fmt.Errorf("config: tp.max_segment_size must be a positive multiple of 16, got %v", key.Value())
		}
		tp.MaxSegmentSize = v
	}
	if key, err := section.GetKey("max_message_size"); err == nil {
		v, err := key.Int()
		if err != nil || v <= 0 {
			return fmt.Errorf("config: tp.max_message_size must be positive, got %v", key.Value())
		}
		tp.MaxMessageSize = v
	}
	if key, err := section.GetKey("max_concurrent_transfers"); err == nil {
		v, err := key.Int()
		if err != nil || v <= 0 {
			return fmt.Errorf("config: tp.max_concurrent_transfers must be positive, got %v", key.Value())
		}
		tp.MaxConcurrentTransfers = v
	}
	if key, err := section.GetKey("reassembly_timeout"); err == nil {
		ms, err := key.Uint()
		if err != nil {
			return fmt.Errorf("config: tp.reassembly_timeout: %w", err)
		}
		tp.ReassemblyTimeout = time.Duration(ms) * time.Millisecond
	}
	return nil
}

// Validate cross-checks the fully-resolved configuration.
func (c Config) Validate() error {
	if c.TP.MaxSegmentSize <= 0 || c.TP.MaxSegmentSize%16 != 0 {
		return fmt.Errorf("config: tp.max_segment_size must be a positive multiple of 16, got %d", c.TP.MaxSegmentSize)
	}
	if c.TP.MaxMessageSize < c.TP.MaxSegmentSize {
		return fmt.Errorf("config: tp.max_message_size (%d) must be >= tp.max_segment_size (%d)", c.TP.MaxMessageSize, c.TP.MaxSegmentSize)
	}
	if c.TP.MaxConcurrentTransfers <= 0 {
		return fmt.Errorf("config: tp.max_concurrent_transfers must be positive, got %d", c.TP.MaxConcurrentTransfers)
	}
	return nil
}
