// Package usbid resolves USB vendor and product IDs to names using the
// usb.ids database shipped with usbutils and hwdata.
package usbid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/ardnew/midilink/pkg/syncutil"
)

// DefaultPaths lists the usual locations of usb.ids.
var DefaultPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/misc/usb.ids",
	"/usr/local/share/hwdata/usb.ids",
}

// Names maps vendor and product IDs to names.
type Names struct {
	mutex    syncutil.RWMutex
	vendors  map[uint16]string
	products map[uint32]string
}

func productKey(vid, pid uint16) uint32 {
	return uint32(vid)<<16 | uint32(pid)
}

// Load parses the first database found in paths, or in [DefaultPaths] when
// none are given.
func Load(paths ...string) (*Names, error) {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		names, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return names, nil
	}
	return nil, fmt.Errorf("usb.ids: %w", fs.ErrNotExist)
}

// Parse reads the usb.ids format. Vendor lines hold four hex digits and a
// name; product lines are the same, indented by one tab, under their
// vendor. The class and other tables that follow the vendor list are
// ignored.
func Parse(r io.Reader) (*Names, error) {
	n := &Names{
		vendors:  make(map[uint16]string),
		products: make(map[uint32]string),
	}

	var vendor uint16
	inVendor := false
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		if line[0] == '\t' {
			if !inVendor || strings.HasPrefix(line, "\t\t") {
				continue
			}
			if pid, name, ok := splitEntry(line[1:]); ok {
				n.products[productKey(vendor, pid)] = name
			}
			continue
		}
		id, name, ok := splitEntry(line)
		inVendor = ok
		if ok {
			vendor = id
			n.vendors[id] = name
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return n, nil
}

// splitEntry parses "xxxx  name".
func splitEntry(s string) (uint16, string, bool) {
	if len(s) < 6 || s[4] != ' ' {
		return 0, "", false
	}
	id, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, "", false
	}
	name := strings.TrimSpace(s[5:])
	if name == "" {
		return 0, "", false
	}
	return uint16(id), name, true
}

// Vendor returns the vendor name, or "" if unknown.
func (n *Names) Vendor(vid uint16) string {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return n.vendors[vid]
}

// Product returns the product name, or "" if unknown.
func (n *Names) Product(vid, pid uint16) string {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return n.products[productKey(vid, pid)]
}

// Add registers names, overriding the database. An empty product only sets
// the vendor.
func (n *Names) Add(vid, pid uint16, vendor, product string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if vendor != "" {
		n.vendors[vid] = vendor
	}
	if product != "" {
		n.products[productKey(vid, pid)] = product
	}
}

// Describe renders "vvvv:pppp vendor product", leaving out unknown names.
func (n *Names) Describe(vid, pid uint16) string {
	parts := []string{fmt.Sprintf("%04x:%04x", vid, pid)}
	if n != nil {
		if v := n.Vendor(vid); v != "" {
			parts = append(parts, v)
		}
		if p := n.Product(vid, pid); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Len returns the number of vendors and products known.
func (n *Names) Len() (vendors, products int) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return len(n.vendors), len(n.products)
}
