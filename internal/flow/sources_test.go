package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"caudal/internal/flow"
)

func TestCategorizeSource(t *testing.T) {
	testCases := []struct {
		name     string
		source   string
		medium   string
		expected flow.SourceCategory
	}{
		{name: "cpc medium", source: "google", medium: "cpc", expected: flow.CategoryAdCampaigns},
		{name: "ppc medium", source: "bing", medium: "ppc", expected: flow.CategoryAdCampaigns},
		{name: "paid medium", source: "newsletter", medium: "paidsocial", expected: flow.CategoryAdCampaigns},
		{name: "ads source", source: "google-ads", medium: "(none)", expected: flow.CategoryAdCampaigns},
		{name: "paid beats social", source: "facebook", medium: "paid", expected: flow.CategoryAdCampaigns},
		{name: "social medium", source: "buffer", medium: "social", expected: flow.CategorySocialMedia},
		{name: "mixed case social medium", source: "instagram.com", medium: "Social", expected: flow.CategorySocialMedia},
		{name: "facebook source", source: "m.facebook.com", medium: "referral", expected: flow.CategorySocialMedia},
		{name: "tiktok source", source: "tiktok", medium: "(none)", expected: flow.CategorySocialMedia},
		{name: "organic search", source: "google", medium: "organic", expected: flow.CategoryOrganic},
		{name: "direct traffic collapses into organic", source: "(direct)", medium: "(none)", expected: flow.CategoryOrganic},
		{name: "referral collapses into organic", source: "example.com", medium: "referral", expected: flow.CategoryOrganic},
		{name: "empty strings", source: "", medium: "", expected: flow.CategoryOrganic},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, flow.CategorizeSource(tc.source, tc.medium))
		})
	}
}

// Every input must land in exactly one of the three categories.
func TestCategorizeSourceTotality(t *testing.T) {
	known := map[flow.SourceCategory]bool{
		flow.CategoryAdCampaigns: true,
		flow.CategorySocialMedia: true,
		flow.CategoryOrganic:     true,
	}
	inputs := [][2]string{
		{"google", "cpc"}, {"", ""}, {"weird source", "weird medium"},
		{"FACEBOOK", "REFERRAL"}, {"ads", "ads"}, {"\t", "\n"},
		{"ütf-8 söurce", "médium"},
	}
	for _, in := range inputs {
		category := flow.CategorizeSource(in[0], in[1])
		assert.True(t, known[category], "input %v produced unknown category %q", in, category)
	}
}
