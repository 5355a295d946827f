package sector

// Merge coalesces adjacent sectors with the same label into arcs. Sectors
// must be in angular order. The scan treats the array circularly: when the
// last and first runs share a label they become one arc, reported first.
func Merge(sectors []Sector) []MergedArc {
	n := len(sectors)
	if n == 0 {
		return nil
	}

	var runs [][]int
	for i := 0; i < n; i++ {
		if i > 0 && sectors[i].Label == sectors[i-1].Label {
			runs[len(runs)-1] = append(runs[len(runs)-1], i)
			continue
		}
		runs = append(runs, []int{i})
	}

	if len(runs) == 1 {
		return []MergedArc{arcOf(sectors, runs[0], 0, 360)}
	}

	// Wrap boundary last: join the tail run onto the head run.
	if last := runs[len(runs)-1]; sectors[last[0]].Label == sectors[runs[0][0]].Label {
		runs[0] = append(append([]int(nil), last...), runs[0]...)
		runs = runs[:len(runs)-1]
	}

	arcs := make([]MergedArc, 0, len(runs))
	for _, run := range runs {
		first, last := sectors[run[0]], sectors[run[len(run)-1]]
		arcs = append(arcs, arcOf(sectors, run, first.StartDeg, last.EndDeg))
	}
	return arcs
}

func arcOf(sectors []Sector, run []int, start, end float64) MergedArc {
	label := sectors[run[0]].Label
	var sum float64
	for _, i := range run {
		sum += sectors[i].Scores.Of(label)
	}
	return MergedArc{
		StartDeg:  start,
		EndDeg:    end,
		Label:     label,
		MeanScore: sum / float64(len(run)),
		Sectors:   run,
	}
}
