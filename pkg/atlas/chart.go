package atlas

import (
	"math"

	"github.com/taigrr/atlasgen/pkg/math3d"
)

type chart struct {
	faces  []int
	normal math3d.Vec3

	// filled by flatten
	local  map[uint32]math3d.Vec2
	bounds math3d.Rect
}

type edge [2]uint32

func vec(p [3]float32) math3d.Vec3 {
	return math3d.V3(float64(p[0]), float64(p[1]), float64(p[2]))
}

// weld maps every vertex to the lowest-numbered vertex at the same position,
// so that faces with split attributes still count as neighbours.
func weld(positions [][3]float32) []uint32 {
	first := make(map[[3]float32]uint32, len(positions))
	ids := make([]uint32, len(positions))
	for i, p := range positions {
		id, ok := first[p]
		if !ok {
			id = uint32(i)
			first[p] = id
		}
		ids[i] = id
	}
	return ids
}

// segment groups edge-connected triangles whose normals stay within maxAngle
// degrees of the chart's first triangle. Charts are returned in the order of
// their first triangle.
func segment(positions [][3]float32, tris [][3]uint32, maxAngle float64) []*chart {
	ids := weld(positions)
	normals := make([]math3d.Vec3, len(tris))
	edges := make(map[edge][]int)
	for f, t := range tris {
		normals[f] = math3d.TriangleNormal(vec(positions[t[0]]), vec(positions[t[1]]), vec(positions[t[2]]))
		for _, e := range faceEdges(t, ids) {
			edges[e] = append(edges[e], f)
		}
	}

	limit := maxAngle * math.Pi / 180
	assigned := make([]bool, len(tris))
	var charts []*chart
	for seed := range tris {
		if assigned[seed] {
			continue
		}
		assigned[seed] = true
		c := &chart{normal: normals[seed]}
		charts = append(charts, c)

		// degenerate seeds have no plane to grow along
		if c.normal.Len() == 0 {
			c.faces = []int{seed}
			continue
		}

		queue := []int{seed}
		for len(queue) > 0 {
			f := queue[0]
			queue = queue[1:]
			c.faces = append(c.faces, f)
			for _, e := range faceEdges(tris[f], ids) {
				for _, g := range edges[e] {
					if assigned[g] || normals[g].AngleTo(c.normal) > limit {
						continue
					}
					assigned[g] = true
					queue = append(queue, g)
				}
			}
		}
	}
	return charts
}

func faceEdges(t [3]uint32, ids []uint32) []edge {
	out := make([]edge, 0, 3)
	for k := range 3 {
		a, b := ids[t[k]], ids[t[(k+1)%3]]
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		out = append(out, edge{a, b})
	}
	return out
}

// flatten projects the chart's vertices onto the chart plane.
func (c *chart) flatten(positions [][3]float32, tris [][3]uint32) {
	normal := c.normal
	if normal.Len() == 0 {
		normal = math3d.V3(0, 0, 1)
	}
	origin := vec(positions[tris[c.faces[0]][0]])
	frame := math3d.PlaneFrame(origin, normal)

	c.local = make(map[uint32]math3d.Vec2)
	first := true
	for _, f := range c.faces {
		for _, v := range tris[f] {
			if _, ok := c.local[v]; ok {
				continue
			}
			p := frame.Project(vec(positions[v]))
			c.local[v] = p
			if first {
				c.bounds = math3d.Rect{Min: p, Max: p}
				first = false
				continue
			}
			c.bounds.Min = c.bounds.Min.Min(p)
			c.bounds.Max = c.bounds.Max.Max(p)
		}
	}
}
