// Package usbid resolves vendor and product IDs to names using the
// usb.ids database shipped with usbutils.
//
// The database is optional: lookups on an empty database return "".
package usbid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DefaultPaths lists the usual locations of usb.ids.
var DefaultPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/misc/usb.ids",
}

// Database maps vendor and product IDs to names.
type Database struct {
	mu       sync.RWMutex
	vendors  map[uint16]string
	products map[uint32]string // VID<<16 | PID
}

// New returns an empty database.
func New() *Database {
	return &Database{
		vendors:  make(map[uint16]string),
		products: make(map[uint32]string),
	}
}

// Load parses the first readable file in paths and returns its path, or
// "" when none could be opened.
func (db *Database) Load(paths ...string) (string, error) {
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		err = db.Parse(f)
		f.Close()
		if err != nil {
			return p, fmt.Errorf("usbid: %s: %w", p, err)
		}
		return p, nil
	}
	return "", nil
}

// Parse reads vendor and product lines from r. Vendor lines are
// "vvvv  name"; product lines follow their vendor as "\tpppp  name".
// Everything else, including the class and language sections, is
// skipped.
func (db *Database) Parse(r io.Reader) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var (
		vid      uint16
		inVendor bool
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		product := line[0] == '\t'
		if product {
			if !inVendor || strings.HasPrefix(line, "\t\t") {
				continue
			}
			line = line[1:]
		}
		id, name, ok := splitEntry(line)
		switch {
		case !ok:
			inVendor = inVendor && product
		case product:
			db.products[uint32(vid)<<16|uint32(id)] = name
		default:
			vid, inVendor = id, true
			db.vendors[vid] = name
		}
	}
	return scanner.Err()
}

// splitEntry splits "xxxx  name" into its hex ID and name.
func splitEntry(line string) (uint16, string, bool) {
	if len(line) < 6 || line[4] != ' ' {
		return 0, "", false
	}
	id, err := strconv.ParseUint(line[:4], 16, 16)
	if err != nil {
		return 0, "", false
	}
	return uint16(id), strings.TrimSpace(line[5:]), true
}

// Vendor returns the vendor name for vid.
func (db *Database) Vendor(vid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.vendors[vid]
}

// Product returns the product name for vid:pid.
func (db *Database) Product(vid, pid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.products[uint32(vid)<<16|uint32(pid)]
}

// Len returns the number of vendors and products known.
func (db *Database) Len() (vendors, products int) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.vendors), len(db.products)
}
