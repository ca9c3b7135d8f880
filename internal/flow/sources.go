package flow

import "strings"

// SourceCategory is one of the traffic-origin buckets the flow graph groups
// sessions into.
type SourceCategory string

const (
	CategoryAdCampaigns SourceCategory = "Ad Campaigns"
	CategorySocialMedia SourceCategory = "Social Media"
	CategoryOrganic     SourceCategory = "Organic"
)

// paidMediumKeywords mark a session as paid traffic when found in the medium.
var paidMediumKeywords = []string{"cpc", "ppc", "paid"}

// socialSourceKeywords mark a session as social traffic when found in the source.
var socialSourceKeywords = []string{"facebook", "instagram", "twitter", "linkedin", "tiktok", "pinterest"}

// CategorizeSource classifies a (source, medium) attribution pair. Rules are
// evaluated in order, first match wins, all matching is case-insensitive
// substring search. Everything that is neither paid nor social falls into
// Organic, including direct and referral traffic.
func CategorizeSource(source, medium string) SourceCategory {
	sourceLower := strings.ToLower(source)
	mediumLower := strings.ToLower(medium)

	for _, kw := range paidMediumKeywords {
		if strings.Contains(mediumLower, kw) {
			return CategoryAdCampaigns
		}
	}
	if strings.Contains(sourceLower, "ads") {
		return CategoryAdCampaigns
	}

	if strings.Contains(mediumLower, "social") {
		return CategorySocialMedia
	}
	for _, kw := range socialSourceKeywords {
		if strings.Contains(sourceLower, kw) {
			return CategorySocialMedia
		}
	}

	return CategoryOrganic
}
