package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caudal/internal/flow"
)

func TestAssembleResult(t *testing.T) {
	graph := flow.BuildGraph([]flow.CanonicalRow{
		{Source: "google", Medium: "organic", LandingPage: "/", Sessions: 12},
	})
	demographics := flow.Demographics{
		Age:    []flow.NameValue{{Name: "25-34", Value: 40}},
		Gender: []flow.NameValue{{Name: "male", Value: 30}, {Name: "female", Value: 28}},
		Geo:    []flow.NameValue{{Name: "Argentina", Value: 55}},
		Device: []flow.NameValue{{Name: "desktop", Value: 33}, {Name: "mobile", Value: 25}},
	}

	result := flow.AssembleResult(graph, demographics, 1234.5, "2026-01-01", "2026-01-31")

	assert.Equal(t, graph.Nodes, result.Nodes)
	assert.Equal(t, graph.Edges, result.Edges)
	assert.Equal(t, flow.DateRange{StartDate: "2026-01-01", EndDate: "2026-01-31"}, result.DateRange)
	assert.Equal(t, 1234.5, result.EstimatedSales)

	// device and gender entries are translated for display
	require.Len(t, result.Demographics.Device, 2)
	assert.Equal(t, "Escritorio", result.Demographics.Device[0].Name)
	assert.Equal(t, "Móvil", result.Demographics.Device[1].Name)
	require.Len(t, result.Demographics.Gender, 2)
	assert.Equal(t, "Hombre", result.Demographics.Gender[0].Name)
	assert.Equal(t, "Mujer", result.Demographics.Gender[1].Name)

	// age and geo pass through untouched
	assert.Equal(t, demographics.Age, result.Demographics.Age)
	assert.Equal(t, demographics.Geo, result.Demographics.Geo)
}

func TestAssembleResultEmptySeries(t *testing.T) {
	result := flow.AssembleResult(flow.BuildGraph(nil), flow.Demographics{}, 0, "2026-01-01", "2026-01-02")

	assert.NotNil(t, result.Demographics.Age)
	assert.NotNil(t, result.Demographics.Gender)
	assert.NotNil(t, result.Demographics.Geo)
	assert.NotNil(t, result.Demographics.Device)
	assert.Empty(t, result.Demographics.Age)
	assert.Zero(t, result.EstimatedSales)
}
