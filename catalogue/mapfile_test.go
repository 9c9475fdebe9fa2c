package catalogue

import (
	"strings"
	"testing"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/descriptor"
)

const sampleMapFile = `
# address space 0 is the control BAR, address space 1 is DMA window A
/BOARD/STATUS     1  0  0x0000  32  0   u  ro
/BOARD/TEMPERATURE 1 0  0x0004  16  4   s  ro   # degrees C, Q12.4
/BOARD/GAIN        8 1  0x1000  18  4   s  rw
/BOARD/RESET       1 0  0x0100  1   0   u  wo

/BOARD/IRQ0        1 0  0x0200  1   0   u  irq
`

func TestParseMapFile(t *testing.T) {
	m, err := FromMapFileString(sampleMapFile)
	if err != nil {
		t.Fatalf("FromMapFileString() failed: %v", err)
	}

	regs := m.Registers()
	if len(regs) != 5 {
		t.Fatalf("got %d registers, want 5", len(regs))
	}

	status := regs[0]
	if status.Path.String() != "/BOARD/STATUS" {
		t.Errorf("Path = %q, want /BOARD/STATUS", status.Path.String())
	}
	if status.AccessKind != accessmode.ReadOnly {
		t.Errorf("AccessKind = %v, want ReadOnly", status.AccessKind)
	}
	if status.Channels[0].TransportKind != descriptor.Integral {
		t.Errorf("STATUS TransportKind = %v, want Integral (fracBits=0)", status.Channels[0].TransportKind)
	}

	temp := regs[1]
	if temp.Channels[0].TransportKind != descriptor.Fractional {
		t.Errorf("TEMPERATURE TransportKind = %v, want Fractional (fracBits=4)", temp.Channels[0].TransportKind)
	}
	if temp.Channels[0].FractionalBits != 4 || !temp.Channels[0].SignedFlag {
		t.Errorf("TEMPERATURE channel = %+v, want frac=4 signed=true", temp.Channels[0])
	}

	gain := regs[2]
	if gain.ElementCount != 8 || gain.AddressSpaceID != 1 {
		t.Errorf("GAIN = %+v, want ElementCount=8 AddressSpaceID=1", gain)
	}

	irq := regs[4]
	if irq.AccessKind != accessmode.Interrupt {
		t.Errorf("IRQ0 AccessKind = %v, want Interrupt", irq.AccessKind)
	}
}

func TestParseMapFileBuildsCatalogue(t *testing.T) {
	m, err := FromMapFileString(sampleMapFile)
	if err != nil {
		t.Fatalf("FromMapFileString() failed: %v", err)
	}
	c := m.Catalogue()
	if c.Len() != 5 {
		t.Errorf("catalogue Len() = %d, want 5", c.Len())
	}
}

func TestParseMapFileRejectsMalformedLine(t *testing.T) {
	_, err := FromMapFileString("/BAD/LINE 1 2 3\n")
	if err == nil {
		t.Fatalf("expected error for a line with too few fields")
	}
}

func TestParseMapFileRejectsBadAccessKind(t *testing.T) {
	bad := "/BAD 1 0 0x0 8 0 u bogus\n"
	_, err := FromMapFileString(bad)
	if err == nil {
		t.Fatalf("expected error for unknown access kind")
	}
}

func TestParseMapFileIgnoresCommentsAndBlankLines(t *testing.T) {
	content := "\n# just a comment\n\n   # indented comment\n"
	m, err := FromMapFileString(content)
	if err != nil {
		t.Fatalf("FromMapFileString() failed: %v", err)
	}
	if len(m.Registers()) != 0 {
		t.Errorf("expected 0 registers, got %d", len(m.Registers()))
	}
}

func TestMapFileString(t *testing.T) {
	m, err := FromMapFileString(sampleMapFile)
	if err != nil {
		t.Fatalf("FromMapFileString() failed: %v", err)
	}
	if !strings.Contains(m.String(), "5 registers") {
		t.Errorf("String() = %q, want it to mention 5 registers", m.String())
	}
}
