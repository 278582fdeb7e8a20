package board

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// BoardLexer tokenizes board description files.
var BoardLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Shell style comments
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	// Numbers; hex before durations so 0x... is never split
	{Name: "Hex", Pattern: `0[xX][0-9a-fA-F]+`},
	{Name: "Duration", Pattern: `[0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h)\b`},
	{Name: "Int", Pattern: `[0-9]+`},

	// Keys may contain dashes (event-tokens, addr-shift)
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_-]*`},

	{Name: "LBrace", Pattern: `\{`},
	{Name: "RBrace", Pattern: `\}`},
	{Name: "Assign", Pattern: `=`},
	{Name: "Semicolon", Pattern: `;`},
})
