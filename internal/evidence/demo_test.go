package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoSources(t *testing.T) {
	bundle, ok := DemoSources(" Andong-si ", "APPLE")
	require.True(t, ok)
	require.Len(t, bundle, 3)
	for name, src := range bundle {
		assert.Equal(t, name, src.Source)
		assert.NotEmpty(t, src.Provenance, "source %s", name)
	}
	assert.Len(t, bundle[SourcePestBulletin].Observations, 2)

	gimcheon, ok := DemoSources("gimcheon-si", "tomato")
	require.True(t, ok)
	assert.Equal(t, []string{"NPMS SVC31(2025-10-27)"}, gimcheon[SourcePestBulletin].Provenance)
	assert.Equal(t, "경북 김천시", gimcheon[SourceWeatherAgency].Warnings[0].Area)

	_, ok = DemoSources("andong-si", "tomato")
	assert.False(t, ok)
}

func TestDemoSources_ReturnsIndependentCopies(t *testing.T) {
	first, _ := DemoSources("andong-si", "apple")
	first[SourcePestBulletin].Bulletins[0].Pest = "changed"

	second, _ := DemoSources("andong-si", "apple")
	assert.Equal(t, "갈색무늬병", second[SourcePestBulletin].Bulletins[0].Pest)
}
