package evidence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	npmsSegmentSep = "|"
	npmsFieldSep   = "!+@+!"
)

var riskSeverity = map[RiskLevel]int{RiskAlert: 0, RiskHigh: 1, RiskModerate: 2, RiskLow: 3}

func normalizeNPMS(p NPMSPayload) (NormalizedSource, error) {
	out := NormalizedSource{Source: SourcePestBulletin, IssuedAt: p.IssuedAt}
	if !p.ModelsOK && !p.ObservationsOK {
		return out, &MalformedPayloadError{Source: SourcePestBulletin, Detail: "neither bulletins nor survey present"}
	}

	seen := map[string]bool{}
	for i, m := range p.Models {
		if code := m.KncrCode.String(); p.CropCode != "" && code != "" && code != p.CropCode {
			continue
		}
		pest := CleanText(m.DbyhsMdlNm.String())
		if pest == "" {
			out.drop("bulletin[%d]: missing pest name", i)
			continue
		}
		idx, err := strconv.Atoi(CleanText(m.ValidAlarmRiskIdex.String()))
		if err != nil {
			out.drop("bulletin[%d] %s: bad risk index %q", i, pest, m.ValidAlarmRiskIdex)
			continue
		}
		if seen[pest] {
			continue
		}
		seen[pest] = true

		since, ok := parseNPMSDate(m.NowDrveDatetm.String())
		if !ok {
			since = DateOf(p.IssuedAt)
		}
		out.Bulletins = append(out.Bulletins, Bulletin{
			Pest:    pest,
			Risk:    riskFromIndex(idx),
			Since:   since,
			Summary: bulletinSummary(m.PestConfigStr.String(), idx),
		})
	}
	sort.SliceStable(out.Bulletins, func(i, j int) bool {
		return riskSeverity[out.Bulletins[i].Risk] < riskSeverity[out.Bulletins[j].Risk]
	})

	for i, o := range p.Observations {
		if !matchesRegion(o, p.RegionCode, p.RegionName) {
			continue
		}
		pest, metric := splitPestMetric(CleanText(o.DbyhsNm.String()))
		if pest == "" {
			out.drop("observation[%d]: missing pest name", i)
			continue
		}
		v, ok := o.InqireValue.Float()
		if !ok {
			out.drop("observation[%d] %s: unparseable value %q", i, pest, o.InqireValue)
			continue
		}
		if v == 0 {
			continue
		}
		area := CleanText(o.SigunguNm.String())
		if area == "" {
			area = p.RegionName
		}
		out.Observations = append(out.Observations, Observation{
			Area:   area,
			Pest:   pest,
			Metric: metric,
			Code:   o.InqireCnClCode.String(),
			Value:  v,
		})
	}

	if out.empty() && len(out.Dropped) > 0 {
		return out, &MalformedPayloadError{Source: SourcePestBulletin, Detail: fmt.Sprintf("all %d records malformed", len(out.Dropped))}
	}

	if p.ModelsOK {
		out.Provenance = append(out.Provenance, fmt.Sprintf("NPMS SVC31(%s)", DateOf(p.IssuedAt)))
	}
	if p.ObservationsOK {
		if p.RunKeyFallback {
			out.Provenance = append(out.Provenance, fmt.Sprintf("NPMS SVC53(fallback run %s)", p.RunKey))
		} else {
			out.Provenance = append(out.Provenance, fmt.Sprintf("NPMS SVC53(run %s)", p.RunKey))
		}
	}
	return out, nil
}

// riskFromIndex maps the alarm stage; stage 1 and anything below it is the
// most severe.
func riskFromIndex(idx int) RiskLevel {
	switch {
	case idx <= 1:
		return RiskAlert
	case idx == 2:
		return RiskHigh
	case idx == 3:
		return RiskModerate
	default:
		return RiskLow
	}
}

// bulletinSummary renders the config segment describing the active risk
// stage as "title body". Segments read "title!+@+!body!+@+!color" joined by
// "|". The segment titled "<idx>단계" wins, otherwise the stage picks a
// segment by position, clamped to the ones present.
func bulletinSummary(raw string, idx int) string {
	s := unescapePercent(raw)
	if !strings.Contains(s, npmsFieldSep) {
		return plainText(s)
	}

	type segment struct{ title, body string }
	var segments []segment
	for _, part := range strings.Split(s, npmsSegmentSep) {
		fields := strings.Split(part, npmsFieldSep)
		if len(fields) < 2 {
			continue
		}
		segments = append(segments, segment{title: plainText(fields[0]), body: plainText(fields[1])})
	}
	if len(segments) == 0 {
		return ""
	}

	chosen := segments[min(max(idx, 1), len(segments))-1]
	prefix := strconv.Itoa(idx) + "단계"
	for _, seg := range segments {
		if strings.HasPrefix(seg.title, prefix) {
			chosen = seg
			break
		}
	}
	return strings.TrimSpace(chosen.title + " " + chosen.body)
}

func parseNPMSDate(raw string) (Date, bool) {
	s := strings.TrimSpace(raw)
	if len(s) < 8 {
		return "", false
	}
	d, err := ParseDate(s[:4] + "-" + s[4:6] + "-" + s[6:8])
	if err != nil {
		return "", false
	}
	return d, true
}

func matchesRegion(o NPMSObservation, code, name string) bool {
	if code == "" && name == "" {
		return true
	}
	if code != "" && o.SigunguCode.String() == code {
		return true
	}
	return name != "" && strings.Contains(CleanText(o.SigunguNm.String()), name)
}

// splitPestMetric splits "pest(metric)" into its parts.
func splitPestMetric(s string) (string, string) {
	open := strings.LastIndex(s, "(")
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:open]), strings.TrimSpace(s[open+1 : len(s)-1])
}
