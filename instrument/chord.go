package instrument

const (
	MIN_CHORD_SIZE = 1
	MAX_CHORD_SIZE = 7
)

var (
	majorTriad      = [3]int{0, 4, 7}
	minorTriad      = [3]int{0, 3, 7}
	diminishedTriad = [3]int{0, 3, 6}
)

// triads of the major scale degrees, I to vii°
var degreeTriads = [7][3]int{
	majorTriad, minorTriad, minorTriad, majorTriad, majorTriad, minorTriad, diminishedTriad,
}

// chromatic offset from the key root to its scale degree; accidentals
// borrow the degree below
var chromaticDegree = [12]int{0, 0, 1, 1, 2, 3, 3, 4, 4, 5, 5, 6}

// BuildChord returns the MIDI keys played when root is pressed with the given
// chord size, using the diatonic triad of root's degree in the major key on
// keyRoot. Size 1 is the root alone; larger sizes stack the triad across
// octaves. Keys outside 0..127 are dropped.
func BuildChord(root, size, keyRoot int) []int {
	if size <= MIN_CHORD_SIZE {
		return inRange([]int{root})
	}
	triad := degreeTriads[chromaticDegree[mod12(root-keyRoot)]]
	third := triad[1]

	var intervals []int
	switch size {
	case 2:
		intervals = []int{0, third}
	case 3:
		intervals = triad[:]
	case 4:
		intervals = append(triad[:], 12)
	case 5:
		intervals = append([]int{-12}, append(triad[:], 12)...)
	case 6:
		intervals = append([]int{-12, -12 + third}, append(triad[:], 12)...)
	default:
		intervals = append([]int{-12, -12 + third}, append(triad[:], 12, 12+third)...)
	}

	keys := make([]int, len(intervals))
	for i, iv := range intervals {
		keys[i] = root + iv
	}
	return inRange(keys)
}

func mod12(n int) int {
	return ((n % 12) + 12) % 12
}

func inRange(keys []int) []int {
	out := keys[:0]
	for _, k := range keys {
		if k >= 0 && k <= 127 {
			out = append(out, k)
		}
	}
	return out
}
