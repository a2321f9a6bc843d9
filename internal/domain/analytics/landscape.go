package analytics

import (
	"sort"

	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
)

// CategoryCount is one aggregated IPC category.
type CategoryCount struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Count       int64  `json:"count"`
}

// Cluster groups landscape categories under one IPC section.
type Cluster struct {
	Name         string          `json:"name"`
	Section      string          `json:"section"`
	Description  string          `json:"description"`
	Items        []CategoryCount `json:"items"`
	TotalPatents int64           `json:"total_patents"`
}

// LandscapeTree is the IPC-hierarchy aggregation at one level.
type LandscapeTree struct {
	Meta
	Level     ipc.Level       `json:"ipc_level"`
	Landscape []CategoryCount `json:"landscape"`
	// Sections rolls every category up to its section letter.
	Sections []CategoryCount `json:"sections"`
	Clusters []Cluster       `json:"clusters"`
}

// SortCategories orders by count descending then category ascending.
func SortCategories(cs []CategoryCount) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Count != cs[j].Count {
			return cs[i].Count > cs[j].Count
		}
		return cs[i].Category < cs[j].Category
	})
}

// BuildLandscape turns category counts into the sorted landscape, its
// section rollup and the clusters of the first topCategories categories.
func BuildLandscape(counts map[string]int64, topCategories int) (landscape, sections []CategoryCount, clusters []Cluster) {
	landscape = make([]CategoryCount, 0, len(counts))
	bySection := map[string]int64{}
	for cat, n := range counts {
		landscape = append(landscape, CategoryCount{Category: cat, Description: ipc.Describe(cat), Count: n})
		bySection[sectionOf(cat)] += n
	}
	SortCategories(landscape)

	sections = make([]CategoryCount, 0, len(bySection))
	for s, n := range bySection {
		sections = append(sections, CategoryCount{Category: s, Description: sectionDescription(s), Count: n})
	}
	SortCategories(sections)

	top := landscape
	if topCategories >= 0 && topCategories < len(top) {
		top = top[:topCategories]
	}
	grouped := map[string]*Cluster{}
	for _, c := range top {
		s := sectionOf(c.Category)
		cl, ok := grouped[s]
		if !ok {
			cl = &Cluster{
				Name:        "Section " + s,
				Section:     s,
				Description: sectionDescription(s),
				Items:       []CategoryCount{},
			}
			grouped[s] = cl
		}
		cl.Items = append(cl.Items, c)
		cl.TotalPatents += c.Count
	}
	clusters = make([]Cluster, 0, len(grouped))
	for _, cl := range grouped {
		clusters = append(clusters, *cl)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].TotalPatents != clusters[j].TotalPatents {
			return clusters[i].TotalPatents > clusters[j].TotalPatents
		}
		return clusters[i].Section < clusters[j].Section
	})
	return landscape, sections, clusters
}

func sectionOf(category string) string {
	if category == ipc.Unclassified {
		return ipc.Unclassified
	}
	return ipc.Section(category)
}

func sectionDescription(s string) string {
	if s == ipc.Unclassified {
		return ipc.UnknownDescription
	}
	return ipc.Describe(s)
}
