package board

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/OpenTraceLab/OpenTraceGCE/pkg/gce"
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/logging"
)

var (
	ErrUnknownKey   = errors.New("board: unknown key")
	ErrDuplicateKey = errors.New("board: duplicate key")
	ErrBadValue     = errors.New("board: bad value")
	ErrChannelIndex = errors.New("board: bad channel index")
	ErrNoEngine     = errors.New("board: no engine defined")
)

// Config converts the engine block to a validated gce.Config. With a
// "channels" key, indices without a block keep the default register window;
// without one, the blocks must number the channels from 0.
func (e *Engine) Config() (*gce.Config, error) {
	cfg := gce.DefaultConfig(0)
	cfg.Name = e.Name

	count := -1
	seen := make(map[string]bool)
	for _, p := range e.Properties() {
		if seen[p.Key] {
			return nil, posErr(p.Pos, ErrDuplicateKey, p.Key)
		}
		seen[p.Key] = true

		var err error
		switch p.Key {
		case "base":
			cfg.BaseAddress, err = p.Value.asUint(64)
		case "event-tokens":
			cfg.EventTokens, err = p.Value.asInt()
		case "slot-cycles":
			var v uint64
			v, err = p.Value.asUint(32)
			cfg.SlotCycles = uint32(v)
		case "addr-shift":
			var v uint64
			v, err = p.Value.asUint(8)
			cfg.Layout.AddrShift = uint(v)
		case "channels":
			count, err = p.Value.asInt()
		case "reset-polls":
			cfg.Reset.MaxPolls, err = p.Value.asInt()
		case "reset-interval":
			cfg.Reset.Interval, err = p.Value.asDuration()
		default:
			return nil, posErr(p.Pos, ErrUnknownKey, p.Key)
		}
		if err != nil {
			return nil, posErr(p.Value.Pos, err, p.Key)
		}
	}

	blocks := e.Channels()
	n := count
	if n < 0 {
		n = len(blocks)
	}
	if n > gce.MaxChannels {
		return nil, posErr(e.Pos, ErrChannelIndex, fmt.Sprintf("%d channels", n))
	}
	cfg.Channels = gce.DefaultConfig(n).Channels

	defined := make(map[int]bool)
	for _, b := range blocks {
		if b.Index < 0 || b.Index >= n {
			return nil, posErr(b.Pos, ErrChannelIndex, strconv.Itoa(b.Index))
		}
		if defined[b.Index] {
			return nil, posErr(b.Pos, ErrChannelIndex, fmt.Sprintf("channel %d defined twice", b.Index))
		}
		defined[b.Index] = true
		if err := b.apply(&cfg.Channels[b.Index]); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: engine %s: %w", e.Pos, e.Name, err)
	}
	logging.Debug(logging.ComponentBoard, "engine loaded", "engine", e.Name, "channels", len(cfg.Channels))
	return cfg, nil
}

func (b *ChannelBlock) apply(cc *gce.ChannelConfig) error {
	seen := make(map[string]bool)
	for _, p := range b.Props {
		if seen[p.Key] {
			return posErr(p.Pos, ErrDuplicateKey, p.Key)
		}
		seen[p.Key] = true

		var err error
		switch p.Key {
		case "offset":
			var v uint64
			v, err = p.Value.asUint(32)
			cc.Offset = uint32(v)
		case "timeout":
			if p.Value.Ident != nil && *p.Value.Ident == "none" {
				cc.Timeout = gce.NoTimeout
			} else {
				cc.Timeout, err = p.Value.asDuration()
			}
		case "priority":
			var v uint64
			v, err = p.Value.asUint(32)
			cc.Priority = uint32(v)
		default:
			return posErr(p.Pos, ErrUnknownKey, p.Key)
		}
		if err != nil {
			return posErr(p.Value.Pos, err, p.Key)
		}
	}
	return nil
}

// Configs converts every engine in the file.
func (f *File) Configs() ([]*gce.Config, error) {
	if len(f.Engines) == 0 {
		return nil, ErrNoEngine
	}
	out := make([]*gce.Config, 0, len(f.Engines))
	names := make(map[string]bool)
	for _, e := range f.Engines {
		if names[e.Name] {
			return nil, posErr(e.Pos, ErrDuplicateKey, "engine "+e.Name)
		}
		names[e.Name] = true

		cfg, err := e.Config()
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// Load parses filename and converts every engine it describes.
func Load(filename string) ([]*gce.Config, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := p.ParseFile(filename)
	if err != nil {
		return nil, err
	}
	cfgs, err := f.Configs()
	if err != nil {
		return nil, err
	}
	logging.Info(logging.ComponentBoard, "board loaded", "file", filename, "engines", len(cfgs))
	return cfgs, nil
}

func posErr(pos lexer.Position, err error, what string) error {
	return fmt.Errorf("%s: %w: %s", pos, err, what)
}

func (v *Value) asUint(bits int) (uint64, error) {
	var s string
	switch {
	case v.Hex != nil:
		s = *v.Hex
	case v.Int != nil:
		s = *v.Int
	default:
		return 0, fmt.Errorf("%w: want integer, got %q", ErrBadValue, v.String())
	}
	n, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadValue, err)
	}
	return n, nil
}

func (v *Value) asInt() (int, error) {
	n, err := v.asUint(31)
	return int(n), err
}

func (v *Value) asDuration() (time.Duration, error) {
	if v.Duration == nil {
		return 0, fmt.Errorf("%w: want duration, got %q", ErrBadValue, v.String())
	}
	d, err := time.ParseDuration(*v.Duration)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadValue, err)
	}
	return d, nil
}
