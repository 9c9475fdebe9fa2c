package catalogue

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/descriptor"
	"github.com/chimeradev/regaccess/regpath"
)

// MapFile is a parsed register map file: a flat text description of one
// backend's register catalogue, one register per line.
//
// Line syntax:
//
//	<path> <elements> <addressSpace> <byteOffset> <width> <fracBits> <signed> <access>
//
// `#` starts a comment (to end of line), blank lines are ignored. `signed`
// is "s" or "u"; `access` is one of ro, wo, rw, irq.
type MapFile struct {
	path     string
	registry []RegisterInfo
}

// FromMapFile reads and parses a map file from disk.
func FromMapFile(path string) (*MapFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &MapFile{path: path}
	if err := m.parse(string(raw)); err != nil {
		return nil, err
	}
	return m, nil
}

// FromMapFileString parses map file content already read into memory.
func FromMapFileString(content string) (*MapFile, error) {
	m := &MapFile{}
	if err := m.parse(content); err != nil {
		return nil, err
	}
	return m, nil
}

// String implements Stringer.
func (m *MapFile) String() string {
	return fmt.Sprintf("map file %q with %d registers", m.path, len(m.registry))
}

// Registers returns the parsed RegisterInfo entries in file order.
func (m *MapFile) Registers() []RegisterInfo {
	return m.registry
}

// Catalogue builds a Catalogue from the parsed registers.
func (m *MapFile) Catalogue() *Catalogue {
	c := New()
	for _, r := range m.registry {
		c.Add(r)
	}
	return c
}

func parseAccessKind(field string) (accessmode.AccessKind, error) {
	switch strings.ToLower(field) {
	case "ro":
		return accessmode.ReadOnly, nil
	case "wo":
		return accessmode.WriteOnly, nil
	case "rw":
		return accessmode.ReadWrite, nil
	case "irq":
		return accessmode.Interrupt, nil
	default:
		return 0, fmt.Errorf("unknown access kind %q", field)
	}
}

func (m *MapFile) parse(content string) error {
	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if commentPos := strings.Index(line, "#"); commentPos != -1 {
			line = line[:commentPos]
		}
		line = strings.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 8 {
			return fmt.Errorf("line %d: expected 8 fields, got %d: %q", lineNum, len(fields), line)
		}

		elements, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("line %d: cannot parse element count %q: %v", lineNum, fields[1], err)
		}
		addressSpace, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("line %d: cannot parse address space %q: %v", lineNum, fields[2], err)
		}
		byteOffset, err := strconv.ParseInt(fields[3], 0, 64)
		if err != nil {
			return fmt.Errorf("line %d: cannot parse byte offset %q: %v", lineNum, fields[3], err)
		}
		width, err := strconv.Atoi(fields[4])
		if err != nil {
			return fmt.Errorf("line %d: cannot parse width %q: %v", lineNum, fields[4], err)
		}
		fracBits, err := strconv.Atoi(fields[5])
		if err != nil {
			return fmt.Errorf("line %d: cannot parse fractional bits %q: %v", lineNum, fields[5], err)
		}
		var signed bool
		switch strings.ToLower(fields[6]) {
		case "s":
			signed = true
		case "u":
			signed = false
		default:
			return fmt.Errorf("line %d: signedness must be 's' or 'u', got %q", lineNum, fields[6])
		}
		access, err := parseAccessKind(fields[7])
		if err != nil {
			return fmt.Errorf("line %d: %v", lineNum, err)
		}

		transport := descriptor.Integral
		if fracBits != 0 {
			transport = descriptor.Fractional
		}

		info := RegisterInfo{
			Path:             regpath.New(fields[0]),
			ElementCount:     elements,
			ElementPitchBits: 32,
			AddressSpaceID:   addressSpace,
			ByteOffset:       byteOffset,
			AccessKind:       access,
			Channels: []descriptor.ChannelInfo{{
				TransportKind:   transport,
				SignificantBits: width,
				FractionalBits:  fracBits,
				SignedFlag:      signed,
			}},
		}
		m.registry = append(m.registry, info)
	}
	return scanner.Err()
}
