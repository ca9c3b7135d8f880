package flow

// NameValue is one entry of a demographic breakdown. Code carries the ISO
// alpha-2 country code and is only set on geo entries.
type NameValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
	Code  string `json:"code,omitempty"`
}

// Demographics carries the four independent audience breakdowns fetched
// alongside the flow graph. A breakdown whose upstream query failed is an
// empty series, never nil fields in the payload.
type Demographics struct {
	Age    []NameValue `json:"age"`
	Gender []NameValue `json:"gender"`
	Geo    []NameValue `json:"geo"`
	Device []NameValue `json:"device"`
}

// DateRange echoes the requested reporting window back to the client.
type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Result is the complete historical-job payload consumed by the rendering
// layer.
type Result struct {
	Nodes          []Node       `json:"nodes"`
	Edges          []Edge       `json:"edges"`
	DateRange      DateRange    `json:"dateRange"`
	Demographics   Demographics `json:"demographics"`
	EstimatedSales float64      `json:"estimatedSales"`
}

// AssembleResult merges the flow graph, demographics, and total revenue into
// the response payload. Device and gender names are run through the term
// translator for display; age brackets and countries are kept verbatim.
func AssembleResult(graph Graph, demographics Demographics, totalRevenue float64, startDate, endDate string) Result {
	demographics.Device = translateNames(demographics.Device)
	demographics.Gender = translateNames(demographics.Gender)
	return Result{
		Nodes:          graph.Nodes,
		Edges:          graph.Edges,
		DateRange:      DateRange{StartDate: startDate, EndDate: endDate},
		Demographics:   normalizeDemographics(demographics),
		EstimatedSales: totalRevenue,
	}
}

func translateNames(series []NameValue) []NameValue {
	out := make([]NameValue, len(series))
	for i, nv := range series {
		out[i] = NameValue{Name: Translate(nv.Name), Value: nv.Value}
	}
	return out
}

// normalizeDemographics replaces nil series with empty ones so the JSON
// payload always carries all four arrays.
func normalizeDemographics(d Demographics) Demographics {
	if d.Age == nil {
		d.Age = []NameValue{}
	}
	if d.Gender == nil {
		d.Gender = []NameValue{}
	}
	if d.Geo == nil {
		d.Geo = []NameValue{}
	}
	if d.Device == nil {
		d.Device = []NameValue{}
	}
	return d
}
