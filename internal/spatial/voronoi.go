package spatial

import (
	"sort"

	"github.com/derekmu/voronoi"
	"github.com/golang/geo/r2"
)

// Neighbours returns, for every point, the indices of the points whose Voronoi
// cells share an edge with its own. Points outside bounds are clipped by the
// diagram's bounding box. Coincident points share a cell and are reported as
// neighbours of each other.
func Neighbours(points []r2.Point, b Bounds) [][]int {
	out := make([][]int, len(points))
	if len(points) < 2 {
		return out
	}

	// sites keyed by coordinate, the diagram drops duplicates
	bySite := make(map[voronoi.Vertex][]int, len(points))
	sites := make([]voronoi.Vertex, 0, len(points))
	for i, p := range points {
		v := voronoi.Vertex{X: p.X, Y: p.Y}
		if _, ok := bySite[v]; !ok {
			sites = append(sites, v)
		}
		bySite[v] = append(bySite[v], i)
	}

	sets := make([]map[int]bool, len(points))
	for i := range sets {
		sets[i] = make(map[int]bool)
	}
	link := func(a, c []int) {
		for _, i := range a {
			for _, j := range c {
				if i != j {
					sets[i][j] = true
					sets[j][i] = true
				}
			}
		}
	}
	for _, idx := range bySite {
		link(idx, idx)
	}

	if len(sites) > 1 {
		bbox := voronoi.NewBBox(0, b.Width, 0, b.Height)
		diagram := voronoi.ComputeDiagram(sites, bbox, true)
		for _, edge := range diagram.Edges {
			if edge.LeftCell == nil || edge.RightCell == nil {
				continue
			}
			link(bySite[edge.LeftCell.Site], bySite[edge.RightCell.Site])
		}
	}

	for i, set := range sets {
		if len(set) == 0 {
			continue
		}
		ns := make([]int, 0, len(set))
		for j := range set {
			ns = append(ns, j)
		}
		sort.Ints(ns)
		out[i] = ns
	}
	return out
}
