package flow

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

const (
	// NodeTypeSourceGroup marks layer-0 nodes (traffic-origin categories).
	NodeTypeSourceGroup = "source_group"
	// NodeTypeEntryPoint marks layer-1 nodes (landing-page groups).
	NodeTypeEntryPoint = "entry_point"

	// maxPageDetails caps how many distinct landing paths a page node lists.
	maxPageDetails = 20
)

// Detail is one entry in a node's breakdown. Source-group details carry
// Key/Source/Medium, entry-point details carry Path; both carry Sessions.
type Detail struct {
	Key      string `json:"key,omitempty"`
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Path     string `json:"path,omitempty"`
	Sessions int64  `json:"sessions"`
}

// Node is an aggregated bucket in the flow graph.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Label    string   `json:"label"`
	Sessions int64    `json:"sessions"`
	Layer    int      `json:"layer"`
	Details  []Detail `json:"details"`
}

// Edge is a weighted connection from a source-group node to an entry-point
// node; the weight is the cumulative session count for that pair.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  int64  `json:"value"`
}

// Graph is the aggregated traffic-flow graph.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// group accumulates sessions and a detail breakdown for one category or
// page group while rows are folded in.
type group struct {
	sessions int64
	details  []Detail
	index    map[string]int // detail key -> position in details
}

type flowKey struct {
	category SourceCategory
	page     PageGroup
}

// BuildGraph folds canonical rows into the bipartite flow graph: one node
// per source category and per page group encountered, one edge per
// (category, group) pair observed. Emission order follows first-encounter
// order and detail ordering is a stable descending sort by sessions, so the
// output is identical across runs for the same input sequence.
func BuildGraph(rows []CanonicalRow) Graph {
	sourceGroups := map[SourceCategory]*group{}
	pageGroups := map[PageGroup]*group{}
	flows := map[flowKey]int64{}

	var sourceOrder []SourceCategory
	var pageOrder []PageGroup
	var flowOrder []flowKey

	for _, row := range rows {
		source := row.Source
		if source == "" {
			source = DefaultSource
		}
		medium := row.Medium
		if medium == "" {
			medium = DefaultMedium
		}
		landing := row.LandingPage
		if landing == "" {
			landing = DefaultLandingPage
		}
		count := row.Sessions
		if count < 0 {
			count = 0
		}

		category := CategorizeSource(source, medium)
		path := extractPath(landing)
		page := GroupPage(path)

		sg, ok := sourceGroups[category]
		if !ok {
			sg = &group{index: map[string]int{}}
			sourceGroups[category] = sg
			sourceOrder = append(sourceOrder, category)
		}
		sg.sessions += count
		sg.add(source+"/"+medium, count, func() Detail {
			return Detail{
				Key:    source + "/" + medium,
				Source: Translate(source),
				Medium: Translate(medium),
			}
		})

		pg, ok := pageGroups[page]
		if !ok {
			pg = &group{index: map[string]int{}}
			pageGroups[page] = pg
			pageOrder = append(pageOrder, page)
		}
		pg.sessions += count
		pg.add(path, count, func() Detail {
			return Detail{Path: path}
		})

		fk := flowKey{category: category, page: page}
		if _, ok := flows[fk]; !ok {
			flowOrder = append(flowOrder, fk)
		}
		flows[fk] += count
	}

	graph := Graph{Nodes: []Node{}, Edges: []Edge{}}

	for _, category := range sourceOrder {
		sg := sourceGroups[category]
		graph.Nodes = append(graph.Nodes, Node{
			ID:       sourceNodeID(category),
			Type:     NodeTypeSourceGroup,
			Label:    string(category),
			Sessions: sg.sessions,
			Layer:    0,
			Details:  sortedDetails(sg.details, 0),
		})
	}

	for _, page := range pageOrder {
		pg := pageGroups[page]
		graph.Nodes = append(graph.Nodes, Node{
			ID:       pageNodeID(page),
			Type:     NodeTypeEntryPoint,
			Label:    string(page),
			Sessions: pg.sessions,
			Layer:    1,
			Details:  sortedDetails(pg.details, maxPageDetails),
		})
	}

	for _, fk := range flowOrder {
		graph.Edges = append(graph.Edges, Edge{
			Source: sourceNodeID(fk.category),
			Target: pageNodeID(fk.page),
			Value:  flows[fk],
		})
	}

	return graph
}

// add accumulates count into the detail identified by key, creating it on
// first sight. Encounter order is preserved for tie-breaking.
func (g *group) add(key string, count int64, create func() Detail) {
	i, ok := g.index[key]
	if !ok {
		i = len(g.details)
		g.index[key] = i
		g.details = append(g.details, create())
	}
	g.details[i].Sessions += count
}

// sortedDetails returns the details sorted descending by sessions. The sort
// is stable so equal counts keep encounter order. limit > 0 truncates the
// result to the top entries.
func sortedDetails(details []Detail, limit int) []Detail {
	out := make([]Detail, len(details))
	copy(out, details)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sessions > out[j].Sessions
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// extractPath reduces a full landing-page URL to its path. Strings that do
// not parse as absolute URLs are used as-is.
func extractPath(landingPage string) string {
	u, err := url.Parse(landingPage)
	if err != nil || u.Host == "" {
		return landingPage
	}
	return u.Path
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func sourceNodeID(category SourceCategory) string {
	return "source_" + whitespacePattern.ReplaceAllString(string(category), "_")
}

func pageNodeID(page PageGroup) string {
	id := whitespacePattern.ReplaceAllString(string(page), "_")
	return "page_" + strings.ReplaceAll(id, "/", "_")
}
