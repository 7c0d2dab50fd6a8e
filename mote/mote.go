// Package mote speaks the Pimoroni Mote USB protocol: four channels of
// sixteen pixels each, addressed with short "mote"-prefixed packets.
package mote

const (
	Channels         = 4
	PixelsPerChannel = 16
	TotalPixels      = Channels * PixelsPerChannel

	cmdConfigure = 'c'
	cmdOutput    = 'o'
)

var header = []byte("mote")

// Pixel is one 8-bit-per-channel RGB value as sent to the strip.
type Pixel struct {
	R, G, B uint8
}

// ConfigurePacket sets the pixel count and on-device gamma correction of a
// channel. Channels are numbered from 1.
func ConfigurePacket(channel, pixels int, gamma bool) []byte {
	var g byte
	if gamma {
		g = 1
	}
	data := make([]byte, 0, len(header)+4)
	data = append(data, header...)
	return append(data, cmdConfigure, byte(channel), byte(pixels), g)
}

// FramePacket encodes a whole frame. The Mote expects exactly TotalPixels
// pixels in channel order with bytes in B,G,R order; short frames are
// padded with black and long ones truncated.
func FramePacket(frame []Pixel) []byte {
	data := make([]byte, len(header)+1+TotalPixels*3)
	copy(data, header)
	data[len(header)] = cmdOutput
	body := data[len(header)+1:]
	for i := 0; i < TotalPixels && i < len(frame); i++ {
		body[3*i] = frame[i].B
		body[3*i+1] = frame[i].G
		body[3*i+2] = frame[i].R
	}
	return data
}
