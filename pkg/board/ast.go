package board

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// File is a parsed board description. It may describe several engines.
type File struct {
	Engines []*Engine `@@*`
}

// Engine is one engine block.
// Example: engine mt8173 { base = 0x10212000; channel 0 { ... } }
type Engine struct {
	Pos lexer.Position

	Name  string  `"engine" @Ident LBrace`
	Items []*Item `@@* RBrace`
}

// Item is either a channel block or an engine property.
type Item struct {
	Channel  *ChannelBlock `  @@`
	Property *Property     `| @@`
}

// ChannelBlock configures one thread.
// Example: channel 1 { offset = 0x180; timeout = 1000ms; }
type ChannelBlock struct {
	Pos lexer.Position

	Index int         `"channel" @Int LBrace`
	Props []*Property `@@* RBrace`
}

// Property is a key = value; assignment.
type Property struct {
	Pos lexer.Position

	Key   string `@Ident Assign`
	Value *Value `@@ Semicolon`
}

// Value is the right-hand side of a property. Exactly one field is set.
type Value struct {
	Pos lexer.Position

	Hex      *string `  @Hex`
	Duration *string `| @Duration`
	Int      *string `| @Int`
	Ident    *string `| @Ident`
}

// String returns the value as written.
func (v *Value) String() string {
	switch {
	case v == nil:
		return ""
	case v.Hex != nil:
		return *v.Hex
	case v.Duration != nil:
		return *v.Duration
	case v.Int != nil:
		return *v.Int
	case v.Ident != nil:
		return *v.Ident
	}
	return ""
}

// Channels returns the channel blocks in file order.
func (e *Engine) Channels() []*ChannelBlock {
	var out []*ChannelBlock
	for _, it := range e.Items {
		if it.Channel != nil {
			out = append(out, it.Channel)
		}
	}
	return out
}

// Properties returns the engine-level properties in file order.
func (e *Engine) Properties() []*Property {
	var out []*Property
	for _, it := range e.Items {
		if it.Property != nil {
			out = append(out, it.Property)
		}
	}
	return out
}
