package script

import "github.com/alecthomas/participle/v2/lexer"

// Lexer tokenises transaction scripts. Keywords are lower case so that
// state names such as Reset lex as identifiers.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},

	{Name: "Keyword", Pattern: `\b(reset|setup|in|out|ep|address|frame|suspend|error|expect|state|data|empty|handshake|outcome)\b`},

	// Hex must end on a word boundary so identifiers that begin with
	// hex letters (Addressed) are not split.
	{Name: "Hex", Pattern: `[0-9A-Fa-f]+\b`},
	{Name: "Ident", Pattern: `[A-Za-z][A-Za-z0-9_-]*`},
})
