package evidence

import "fmt"

// Peach fruit moth trap count, and the count at which control is advised.
const (
	PeachMothMetricCode = "SS0127"
	PeachMothThreshold  = 10.0
)

// ComputePestHints returns advisory strings for survey observations at or
// above their action threshold. Output order follows the observations.
func ComputePestHints(observations []Observation) []string {
	hints := []string{}
	for _, obs := range observations {
		if obs.Code != PeachMothMetricCode || obs.Value < PeachMothThreshold {
			continue
		}
		area := obs.Area
		if area == "" {
			area = "관측지역"
		}
		hints = append(hints, fmt.Sprintf(
			"%s 복숭아순나방(트랩당마리수) %s마리 관측, 기준 %s마리 이상으로 높음. 살충제 방제 검토를 권장합니다 (출처: NPMS SVC53).",
			area, formatValue(obs.Value), formatValue(PeachMothThreshold),
		))
	}
	return hints
}
