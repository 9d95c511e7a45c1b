package atlas

import (
	"cmp"
	"math"
	"slices"
)

const maxPackAttempts = 128

// placement is a chart rectangle in texels.
type placement struct {
	x, y, w, h int
}

// pack finds a chart scale (texels per world unit) at which every chart fits
// on a res×res shelf layout and returns the chart placements.
func pack(charts []*chart, res, pad int) ([]placement, float64, error) {
	avail := float64(res - 2*pad)
	if avail < 1 {
		return nil, 0, ErrAtlasFull
	}

	var area, longest float64
	for _, c := range charts {
		s := c.bounds.Size()
		area += s.X * s.Y
		longest = max(longest, s.X, s.Y)
	}
	scale := 1.0
	if area > 0 {
		scale = avail / math.Sqrt(area)
	}
	if longest > 0 {
		scale = min(scale, avail/longest)
	}

	// tallest first, ties in chart order
	order := make([]int, len(charts))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(charts[b].bounds.Size().Y, charts[a].bounds.Size().Y)
	})

	for range maxPackAttempts {
		if pl, ok := shelfPack(charts, order, scale, res, pad); ok {
			return pl, scale, nil
		}
		scale *= 0.9
	}
	return nil, 0, ErrAtlasFull
}

func shelfPack(charts []*chart, order []int, scale float64, res, pad int) ([]placement, bool) {
	out := make([]placement, len(charts))
	x, y, shelf := pad, pad, 0
	for _, i := range order {
		s := charts[i].bounds.Size()
		w := max(1, int(math.Ceil(s.X*scale)))
		h := max(1, int(math.Ceil(s.Y*scale)))

		if x+w+pad > res {
			x = pad
			y += shelf + pad
			shelf = 0
		}
		if x+w+pad > res || y+h+pad > res {
			return nil, false
		}
		out[i] = placement{x: x, y: y, w: w, h: h}
		x += w + pad
		shelf = max(shelf, h)
	}
	return out, true
}
