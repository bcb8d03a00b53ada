package irq

import "strings"

// Flag is a set of interrupt sources as laid out in the IE and IF registers.
// The lower the bit position, the higher the priority.
type Flag uint32

const (
	VBlank          Flag = 1 << 0  // LCD entered vertical blank
	HBlank          Flag = 1 << 1  // LCD entered horizontal blank
	VCount          Flag = 1 << 2  // VCOUNT matched DISPSTAT setting
	Timer0          Flag = 1 << 3  // timer 0 overflow
	Timer1          Flag = 1 << 4  // timer 1 overflow
	Timer2          Flag = 1 << 5  // timer 2 overflow
	Timer3          Flag = 1 << 6  // timer 3 overflow
	SIO             Flag = 1 << 7  // serial communication
	DMA0            Flag = 1 << 8  // DMA channel 0 finished
	DMA1            Flag = 1 << 9  // DMA channel 1 finished
	DMA2            Flag = 1 << 10 // DMA channel 2 finished
	DMA3            Flag = 1 << 11 // DMA channel 3 finished
	Keypad          Flag = 1 << 12 // key combination pressed
	Slot2           Flag = 1 << 13 // GBA slot IREQ
	IPCSync         Flag = 1 << 16 // IPC sync request from the ARM7
	IPCSendEmpty    Flag = 1 << 17 // IPC send FIFO empty
	IPCRecvNotEmpty Flag = 1 << 18 // IPC receive FIFO not empty
	Slot1Done       Flag = 1 << 19 // NDS slot transfer complete
	Slot1IREQ       Flag = 1 << 20 // NDS slot IREQ_MC
	GeometryFIFO    Flag = 1 << 21 // geometry command FIFO below threshold

	All Flag = 1<<22 - 1
)

// Timer returns the flag of timer channel n.
func Timer(n int) Flag {
	return Timer0 << n
}

// DMA returns the flag of DMA channel n.
func DMA(n int) Flag {
	return DMA0 << n
}

var flagNames = [...]string{
	0:  "VBlank",
	1:  "HBlank",
	2:  "VCount",
	3:  "Timer0",
	4:  "Timer1",
	5:  "Timer2",
	6:  "Timer3",
	7:  "SIO",
	8:  "DMA0",
	9:  "DMA1",
	10: "DMA2",
	11: "DMA3",
	12: "Keypad",
	13: "Slot2",
	16: "IPCSync",
	17: "IPCSendEmpty",
	18: "IPCRecvNotEmpty",
	19: "Slot1Done",
	20: "Slot1IREQ",
	21: "GeometryFIFO",
}

func (f Flag) String() string {
	if f == 0 {
		return "0"
	}
	var b strings.Builder
	for i, name := range flagNames {
		if f&(1<<i) == 0 || name == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		b.WriteString(name)
	}
	return b.String()
}

// ParseFlag returns the flag with the given name, case insensitive.
func ParseFlag(name string) (Flag, bool) {
	for i, n := range flagNames {
		if n != "" && strings.EqualFold(n, name) {
			return 1 << i, true
		}
	}
	return 0, false
}
