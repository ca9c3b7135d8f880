package flow_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caudal/internal/flow"
)

func TestBuildGraphBasicScenario(t *testing.T) {
	rows := []flow.CanonicalRow{
		{Source: "google", Medium: "cpc", LandingPage: "https://site/shop/sneakers-123", Sessions: 50},
		{Source: "(direct)", Medium: "(none)", LandingPage: "/", Sessions: 10},
	}

	graph := flow.BuildGraph(rows)

	require.Len(t, graph.Nodes, 4)
	require.Len(t, graph.Edges, 2)

	nodesByID := map[string]flow.Node{}
	for _, n := range graph.Nodes {
		nodesByID[n.ID] = n
	}

	ads := nodesByID["source_Ad_Campaigns"]
	assert.Equal(t, flow.NodeTypeSourceGroup, ads.Type)
	assert.Equal(t, "Ad Campaigns", ads.Label)
	assert.Equal(t, int64(50), ads.Sessions)
	assert.Equal(t, 0, ads.Layer)
	require.Len(t, ads.Details, 1)
	assert.Equal(t, "google/cpc", ads.Details[0].Key)
	assert.Equal(t, "google", ads.Details[0].Source)
	assert.Equal(t, "Pago (CPC)", ads.Details[0].Medium)
	assert.Equal(t, int64(50), ads.Details[0].Sessions)

	organic := nodesByID["source_Organic"]
	assert.Equal(t, int64(10), organic.Sessions)
	require.Len(t, organic.Details, 1)
	assert.Equal(t, "Directo", organic.Details[0].Source)
	assert.Equal(t, "Directo", organic.Details[0].Medium)

	catalog := nodesByID["page_CATALOG"]
	assert.Equal(t, flow.NodeTypeEntryPoint, catalog.Type)
	assert.Equal(t, 1, catalog.Layer)
	assert.Equal(t, int64(50), catalog.Sessions)
	require.Len(t, catalog.Details, 1)
	assert.Equal(t, "/shop/sneakers-123", catalog.Details[0].Path)

	home := nodesByID["page_HOME"]
	assert.Equal(t, int64(10), home.Sessions)

	assert.Contains(t, graph.Edges, flow.Edge{Source: "source_Ad_Campaigns", Target: "page_CATALOG", Value: 50})
	assert.Contains(t, graph.Edges, flow.Edge{Source: "source_Organic", Target: "page_HOME", Value: 10})
}

func TestBuildGraphEmptyInput(t *testing.T) {
	graph := flow.BuildGraph(nil)
	assert.Equal(t, []flow.Node{}, graph.Nodes)
	assert.Equal(t, []flow.Edge{}, graph.Edges)
}

// No sessions are lost or double-counted: the edge weights must add up to
// the input session total.
func TestBuildGraphConservation(t *testing.T) {
	rows := []flow.CanonicalRow{
		{Source: "google", Medium: "organic", LandingPage: "/", Sessions: 7},
		{Source: "google", Medium: "cpc", LandingPage: "/shop", Sessions: 13},
		{Source: "facebook", Medium: "social", LandingPage: "/shop", Sessions: 5},
		{Source: "facebook", Medium: "social", LandingPage: "/promo", Sessions: 4},
		{Source: "(direct)", Medium: "(none)", LandingPage: "/cart", Sessions: 9},
		{Source: "newsletter", Medium: "email", LandingPage: "/", Sessions: 2},
		{Source: "bad", Medium: "row", LandingPage: "/x", Sessions: -3}, // counts as 0
	}

	var total int64
	for _, r := range rows {
		if r.Sessions > 0 {
			total += r.Sessions
		}
	}

	graph := flow.BuildGraph(rows)

	var edgeTotal int64
	for _, e := range graph.Edges {
		edgeTotal += e.Value
	}
	assert.Equal(t, total, edgeTotal)

	// per-node consistency: node sessions equal the sum of its details
	for _, n := range graph.Nodes {
		var detailTotal int64
		for _, d := range n.Details {
			detailTotal += d.Sessions
		}
		assert.Equal(t, n.Sessions, detailTotal, "node %s", n.ID)
	}
}

func TestBuildGraphMergesDetailsByKey(t *testing.T) {
	rows := []flow.CanonicalRow{
		{Source: "google", Medium: "organic", LandingPage: "/a", Sessions: 3},
		{Source: "google", Medium: "organic", LandingPage: "/b", Sessions: 4},
		{Source: "bing", Medium: "organic", LandingPage: "/a", Sessions: 1},
	}

	graph := flow.BuildGraph(rows)

	var organic flow.Node
	for _, n := range graph.Nodes {
		if n.ID == "source_Organic" {
			organic = n
		}
	}
	require.Len(t, organic.Details, 2)
	// sorted descending by sessions
	assert.Equal(t, "google/organic", organic.Details[0].Key)
	assert.Equal(t, int64(7), organic.Details[0].Sessions)
	assert.Equal(t, "bing/organic", organic.Details[1].Key)
}

func TestBuildGraphTruncatesPageDetails(t *testing.T) {
	var rows []flow.CanonicalRow
	for i := 0; i < 30; i++ {
		rows = append(rows, flow.CanonicalRow{
			Source:      "google",
			Medium:      "organic",
			LandingPage: "/faq-" + string(rune('a'+i)),
			Sessions:    int64(30 - i),
		})
	}

	graph := flow.BuildGraph(rows)

	var other flow.Node
	for _, n := range graph.Nodes {
		if n.Type == flow.NodeTypeEntryPoint {
			other = n
		}
	}
	assert.Len(t, other.Details, 20)
	// truncation keeps the largest entries; node total still covers all rows
	assert.Equal(t, int64(465), other.Sessions) // 30+29+...+1
	var shown int64
	for _, d := range other.Details {
		shown += d.Sessions
	}
	assert.Greater(t, other.Sessions, shown)
}

// Ties keep encounter order: the sort must be stable.
func TestBuildGraphStableTieOrder(t *testing.T) {
	rows := []flow.CanonicalRow{
		{Source: "alpha", Medium: "organic", LandingPage: "/x", Sessions: 5},
		{Source: "beta", Medium: "organic", LandingPage: "/y", Sessions: 5},
		{Source: "gamma", Medium: "organic", LandingPage: "/z", Sessions: 5},
	}

	graph := flow.BuildGraph(rows)

	var organic flow.Node
	for _, n := range graph.Nodes {
		if n.ID == "source_Organic" {
			organic = n
		}
	}
	require.Len(t, organic.Details, 3)
	assert.Equal(t, "alpha/organic", organic.Details[0].Key)
	assert.Equal(t, "beta/organic", organic.Details[1].Key)
	assert.Equal(t, "gamma/organic", organic.Details[2].Key)
}

// The builder must be deterministic: identical input, identical output,
// byte for byte.
func TestBuildGraphDeterminism(t *testing.T) {
	rows := []flow.CanonicalRow{
		{Source: "google", Medium: "cpc", LandingPage: "https://site/shop/1", Sessions: 8},
		{Source: "facebook", Medium: "social", LandingPage: "/promo", Sessions: 8},
		{Source: "(direct)", Medium: "(none)", LandingPage: "/", Sessions: 8},
		{Source: "google", Medium: "organic", LandingPage: "/blog/hello", Sessions: 8},
	}

	first, err := json.Marshal(flow.BuildGraph(rows))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := json.Marshal(flow.BuildGraph(rows))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestBuildGraphAppliesRowDefaults(t *testing.T) {
	graph := flow.BuildGraph([]flow.CanonicalRow{{Sessions: 3}})

	require.Len(t, graph.Nodes, 2)
	organic := graph.Nodes[0]
	require.Len(t, organic.Details, 1)
	assert.Equal(t, "(direct)/(none)", organic.Details[0].Key)

	// "Unknown" is not parseable as a URL path and groups as OTHER
	entry := graph.Nodes[1]
	assert.Equal(t, "page_OTHER", entry.ID)
	require.Len(t, entry.Details, 1)
	assert.Equal(t, "Unknown", entry.Details[0].Path)
}
