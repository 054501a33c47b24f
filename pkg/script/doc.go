// Package script parses and replays host transaction scripts against the
// simulated peripheral.
//
// A script is a list of commands, one per line by convention:
//
//	reset                       # bus reset
//	setup 80 06 00 01 00 00 12 00
//	in                          # IN token to endpoint 0
//	out                         # zero-length OUT
//	out ep 1 01020304           # OUT with data to endpoint 1
//	address 7                   # send later tokens to address 7
//	frame | suspend | error     # bus events
//	expect state Addressed
//	expect address 7
//	expect handshake STALL
//	expect outcome request-error
//	expect data 12 01 00 02
//	expect empty
//
// Byte strings are hex and may be split across tokens. Addresses and
// endpoint numbers are decimal. Text after # is a comment.
package script
