package sources

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
)

var andong = evidence.Identity{
	Lat: 36.568, Lon: 128.729,
	GridX: 91, GridY: 106,
	AreaCode: "11H10000", TempAreaCode: "11H10501", WarnAreaCode: "L1071000",
	CropCode: "FT010601", PestSidoCode: "47", PestRegionCode: "4717", PestRegionName: "안동시",
}

var window = evidence.Window{Days: 10, Hours: 72}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2025, 10, 29, 9, 0, 0, 0, evidence.KST))
}

func testClientConfig(srv *httptest.Server) ClientConfig {
	return ClientConfig{
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Backoff:    &fastBackoff,
		Clock:      fixedClock(),
		Logger:     discardLogger(),
	}
}
