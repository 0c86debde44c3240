package cube

// Face is one of the six faces of a block.
type Face int

const (
	FaceDown Face = iota
	FaceUp
	// FaceNorth points towards negative Z.
	FaceNorth
	// FaceSouth points towards positive Z.
	FaceSouth
	// FaceWest points towards negative X.
	FaceWest
	// FaceEast points towards positive X.
	FaceEast
)

var faceOffsets = [...]Pos{
	FaceDown:  {0, -1, 0},
	FaceUp:    {0, 1, 0},
	FaceNorth: {0, 0, -1},
	FaceSouth: {0, 0, 1},
	FaceWest:  {-1, 0, 0},
	FaceEast:  {1, 0, 0},
}

var faceNames = [...]string{"down", "up", "north", "south", "west", "east"}

// Faces returns all six faces.
func Faces() []Face {
	return []Face{FaceDown, FaceUp, FaceNorth, FaceSouth, FaceWest, FaceEast}
}

// HorizontalFaces returns the four horizontal faces in flow order: -X, +X, -Z, +Z.
func HorizontalFaces() [4]Face {
	return [4]Face{FaceWest, FaceEast, FaceNorth, FaceSouth}
}

func (f Face) Offset() Pos {
	return faceOffsets[f]
}

// Opposite returns the face on the other side of the block.
func (f Face) Opposite() Face {
	switch f {
	case FaceDown:
		return FaceUp
	case FaceUp:
		return FaceDown
	case FaceNorth:
		return FaceSouth
	case FaceSouth:
		return FaceNorth
	case FaceWest:
		return FaceEast
	default:
		return FaceWest
	}
}

// Horizontal reports whether f is one of the four side faces.
func (f Face) Horizontal() bool {
	return f >= FaceNorth && f <= FaceEast
}

func (f Face) String() string {
	if f < 0 || int(f) >= len(faceNames) {
		return "unknown"
	}
	return faceNames[f]
}
