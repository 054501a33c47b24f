package script

import "github.com/alecthomas/participle/v2/lexer"

// Script is a sequence of host actions and expectations.
type Script struct {
	Commands []*Command `@@*`
}

// Command is one line of a script.
type Command struct {
	Pos lexer.Position

	Reset   bool     `  @"reset"`
	Setup   *Setup   `| @@`
	In      *In      `| @@`
	Out     *Out     `| @@`
	Address *Address `| @@`
	Frame   bool     `| @"frame"`
	Suspend bool     `| @"suspend"`
	Error   bool     `| @"error"`
	Expect  *Expect  `| @@`
}

// Setup sends a SETUP packet given as hex bytes.
type Setup struct {
	Bytes []string `"setup" @Hex+`
}

// In sends an IN token.
type In struct {
	Endpoint *string `"in" ( "ep" @Hex )?`
}

// Out sends an OUT token with optional data.
type Out struct {
	Endpoint *string  `"out" ( "ep" @Hex )?`
	Bytes    []string `@Hex*`
}

// Address selects the function address subsequent tokens go to.
type Address struct {
	Value string `"address" @Hex`
}

// Expect checks the result of the preceding commands.
type Expect struct {
	State     *string  `"expect" ( "state" @Ident`
	Address   *string  `        | "address" @Hex`
	Handshake *string  `        | "handshake" @Ident`
	Outcome   *string  `        | "outcome" @( Ident | "reset" )`
	Empty     bool     `        | @"empty"`
	Data      []string `        | "data" @Hex+ )`
}
