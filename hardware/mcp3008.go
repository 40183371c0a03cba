package hardware

import "fmt"

// MCP3008 reads the 10 bit single-ended channels of an MCP3008 over SPI.
type MCP3008 struct {
	spi SPI
}

func NewMCP3008(spi SPI) *MCP3008 {
	return &MCP3008{spi: spi}
}

// mcp3008Frame builds the start bit, single-ended flag and channel
// selection for one conversion.
func mcp3008Frame(channel int) []byte {
	return []byte{1, byte(8+channel) << 4, 0}
}

func mcp3008Value(read []byte) uint16 {
	return (uint16(read[1])&3)<<8 | uint16(read[2])
}

func (m *MCP3008) ReadChannel(ch int) (uint16, error) {
	if ch < 0 || ch > 7 {
		return 0, fmt.Errorf("mcp3008: invalid channel %d", ch)
	}
	read := m.spi.Exchange(mcp3008Frame(ch))
	if len(read) != 3 {
		return 0, fmt.Errorf("mcp3008: short read of %d bytes", len(read))
	}
	return mcp3008Value(read), nil
}
