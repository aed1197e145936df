package contour

import "fmt"

// Case is a marching-squares cell configuration: one bit per corner that is
// at or above the iso-value.
type Case uint8

// Corner bits. A cell at (x, y) has its bottom-left corner at (x, y) and its
// top-left corner at (x, y+1).
const (
	BottomLeft  Case = 1 << iota // (x, y)
	BottomRight                  // (x+1, y)
	TopRight                     // (x+1, y+1)
	TopLeft                      // (x, y+1)
)

// Edge identifies a side of a cell.
type Edge uint8

const (
	EdgeBottom Edge = iota // bottom-left to bottom-right
	EdgeRight              // bottom-right to top-right
	EdgeTop                // top-left to top-right
	EdgeLeft               // bottom-left to top-left
)

// EdgePair is one output segment, joining the crossings on two edges.
type EdgePair [2]Edge

type caseDef struct {
	name     string
	segments []EdgePair
}

// cases lists every configuration with its segments. The saddles (0101 and
// 1010) cut off each high corner separately, which connects more than a
// centre-value decision would; that approximation is accepted for isobars.
var cases = [16]caseDef{
	0b0000: {"empty", nil},
	0b0001: {"bottom-left", []EdgePair{{EdgeLeft, EdgeBottom}}},
	0b0010: {"bottom-right", []EdgePair{{EdgeBottom, EdgeRight}}},
	0b0011: {"bottom", []EdgePair{{EdgeLeft, EdgeRight}}},
	0b0100: {"top-right", []EdgePair{{EdgeRight, EdgeTop}}},
	0b0101: {"saddle-bottom-left-top-right", []EdgePair{{EdgeLeft, EdgeBottom}, {EdgeRight, EdgeTop}}},
	0b0110: {"right", []EdgePair{{EdgeBottom, EdgeTop}}},
	0b0111: {"all-but-top-left", []EdgePair{{EdgeLeft, EdgeTop}}},
	0b1000: {"top-left", []EdgePair{{EdgeTop, EdgeLeft}}},
	0b1001: {"left", []EdgePair{{EdgeBottom, EdgeTop}}},
	0b1010: {"saddle-bottom-right-top-left", []EdgePair{{EdgeBottom, EdgeRight}, {EdgeTop, EdgeLeft}}},
	0b1011: {"all-but-top-right", []EdgePair{{EdgeRight, EdgeTop}}},
	0b1100: {"top", []EdgePair{{EdgeLeft, EdgeRight}}},
	0b1101: {"all-but-bottom-right", []EdgePair{{EdgeBottom, EdgeRight}}},
	0b1110: {"all-but-bottom-left", []EdgePair{{EdgeLeft, EdgeBottom}}},
	0b1111: {"full", nil},
}

// Classify builds the configuration for four corner values.
func Classify(bl, br, tr, tl, iso float64) Case {
	var c Case
	if bl >= iso {
		c |= BottomLeft
	}
	if br >= iso {
		c |= BottomRight
	}
	if tr >= iso {
		c |= TopRight
	}
	if tl >= iso {
		c |= TopLeft
	}
	return c
}

// Segments returns the edge pairs emitted for c.
func (c Case) Segments() []EdgePair { return cases[c&0xf].segments }

// Ambiguous reports whether c is one of the two saddle configurations.
func (c Case) Ambiguous() bool { return c == 0b0101 || c == 0b1010 }

func (c Case) String() string { return fmt.Sprintf("%04b(%s)", uint8(c), cases[c&0xf].name) }

// corners returns the cell-relative offsets of the edge's two endpoints.
func (e Edge) corners() (x0, y0, x1, y1 int) {
	switch e {
	case EdgeBottom:
		return 0, 0, 1, 0
	case EdgeRight:
		return 1, 0, 1, 1
	case EdgeTop:
		return 0, 1, 1, 1
	default:
		return 0, 0, 0, 1
	}
}
