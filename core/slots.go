package core

// unitSlots tracks which timing units are claimed in each block.
type unitSlots struct {
	used [2][UnitsPerBlock]bool
}

// allocate returns the lowest free unit in block. Exhaustion means more
// channels than units, which the constants rule out, so it panics.
func (s *unitSlots) allocate(block Block) uint8 {
	for i := uint8(0); i < UnitsPerBlock; i++ {
		if !s.used[block][i] {
			s.used[block][i] = true
			return i
		}
	}
	panic("no free timing unit in block " + itoa(int(block)))
}

func (s *unitSlots) release(block Block, unit uint8) {
	s.used[block][unit] = false
}

// inUse returns the number of claimed units across both blocks.
func (s *unitSlots) inUse() int {
	n := 0
	for b := range s.used {
		for _, u := range s.used[b] {
			if u {
				n++
			}
		}
	}
	return n
}
