package script

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/bentwire/stm32f072-usb/pkg"
)

var parser = participle.MustBuild[Script](
	participle.Lexer(Lexer),
	participle.Elide("Comment", "Whitespace"),
	participle.UseLookahead(2),
)

// Parse parses a script from r. name is used in error positions.
func Parse(name string, r io.Reader) (*Script, error) {
	s, err := parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return s, nil
}

// ParseString parses a script held in memory.
func ParseString(name, src string) (*Script, error) {
	return Parse(name, strings.NewReader(src))
}

// ParseFile parses the script at path.
func ParseFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()
	return Parse(path, f)
}

// decodeHex joins hex tokens and decodes them.
func decodeHex(tokens []string) ([]byte, error) {
	b, err := hex.DecodeString(strings.Join(tokens, ""))
	if err != nil {
		return nil, fmt.Errorf("hex %q: %w", strings.Join(tokens, " "), pkg.ErrInvalidParameter)
	}
	return b, nil
}

// decodeNumber parses a decimal token no larger than limit.
func decodeNumber(token string, limit int) (int, error) {
	v, err := strconv.Atoi(token)
	if err != nil || v < 0 || v > limit {
		return 0, fmt.Errorf("number %q: %w", token, pkg.ErrInvalidParameter)
	}
	return v, nil
}
