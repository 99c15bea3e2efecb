package evidence

import "fmt"

// Policy names accepted by PolicyByName.
const (
	PolicyAgencyNearTerm = "agency_near_term"
	PolicyNumericPrimary = "numeric_primary"
)

// Policy ranks climate sources for a day or hour offset from D0.
// It is a pure function of the offset.
type Policy interface {
	Name() string
	DailyRank(dayOffset int) []SourceName
	HourlyRank(hourOffset int) []SourceName
	// OverlaySummary reports whether agency summary text is attached to days
	// won by another source.
	OverlaySummary() bool
}

// AgencyNearTerm prefers the weather agency through NearTermDays and the
// numeric model after that.
type AgencyNearTerm struct {
	NearTermDays int
}

func (AgencyNearTerm) Name() string { return PolicyAgencyNearTerm }

func (p AgencyNearTerm) DailyRank(dayOffset int) []SourceName {
	if dayOffset <= p.NearTermDays {
		return []SourceName{SourceWeatherAgency, SourceNumericForecast}
	}
	return []SourceName{SourceNumericForecast, SourceWeatherAgency}
}

func (AgencyNearTerm) HourlyRank(int) []SourceName {
	return []SourceName{SourceWeatherAgency, SourceNumericForecast}
}

func (AgencyNearTerm) OverlaySummary() bool { return false }

// NumericPrimary prefers the numeric model everywhere and overlays agency
// summaries as annotations.
type NumericPrimary struct{}

func (NumericPrimary) Name() string { return PolicyNumericPrimary }

func (NumericPrimary) DailyRank(int) []SourceName {
	return []SourceName{SourceNumericForecast, SourceWeatherAgency}
}

func (NumericPrimary) HourlyRank(int) []SourceName {
	return []SourceName{SourceNumericForecast, SourceWeatherAgency}
}

func (NumericPrimary) OverlaySummary() bool { return true }

// PolicyByName builds a configured policy.
func PolicyByName(name string, nearTermDays int) (Policy, error) {
	switch name {
	case "", PolicyAgencyNearTerm:
		if nearTermDays < 0 {
			return nil, fmt.Errorf("near-term days must be non-negative, got %d", nearTermDays)
		}
		return AgencyNearTerm{NearTermDays: nearTermDays}, nil
	case PolicyNumericPrimary:
		return NumericPrimary{}, nil
	default:
		return nil, fmt.Errorf("unknown merge policy %q", name)
	}
}
