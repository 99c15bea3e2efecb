package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
)

const (
	defaultNPMSURL = "http://ncpms.rda.go.kr/npmsAPI/service"

	// DefaultFallbackRunKey is the survey run used when the run listing fails.
	// It is versioned with the deployment and always reported in provenance.
	DefaultFallbackRunKey = "202500209FT01060101322008"

	npmsJSON = "AA003"
)

var errNoRuns = errors.New("no survey runs listed")

// NPMS is the pest-bulletin source client. Crop forecast models (SVC31) and
// the survey chain (SVC51 run listing, then SVC53 detail) run concurrently.
type NPMS struct {
	baseURL        string
	apiKey         string
	fallbackRunKey string
	httpCfg        HTTPClientConfig
	circuit        *gobreaker.CircuitBreaker
	clock          clockwork.Clock
	logger         *slog.Logger
}

// NewNPMS builds the client. An empty fallbackRunKey uses DefaultFallbackRunKey.
func NewNPMS(cfg ClientConfig, fallbackRunKey string) *NPMS {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultNPMSURL
	}
	if fallbackRunKey == "" {
		fallbackRunKey = DefaultFallbackRunKey
	}
	logger := cfg.logger()
	return &NPMS{
		baseURL:        baseURL,
		apiKey:         cfg.APIKey,
		fallbackRunKey: fallbackRunKey,
		httpCfg:        cfg.httpConfig(),
		circuit:        newCircuitBreaker("npms", logger),
		clock:          cfg.clock(),
		logger:         logger,
	}
}

func (c *NPMS) Name() evidence.SourceName {
	return evidence.SourcePestBulletin
}

type npmsModelsResponse struct {
	Service struct {
		PestModelByKncrList oneOrMany[evidence.NPMSPestModel] `json:"pestModelByKncrList"`
	} `json:"service"`
}

type npmsRun struct {
	InsectKey       evidence.FlexString `json:"insectKey"`
	KncrCode        evidence.FlexString `json:"kncrCode"`
	InputStdrDatetm evidence.FlexString `json:"inputStdrDatetm"`
}

type npmsRunsResponse struct {
	Service struct {
		List oneOrMany[npmsRun] `json:"list"`
	} `json:"service"`
}

type npmsSurveyResponse struct {
	Service struct {
		StructList oneOrMany[evidence.NPMSObservation] `json:"structList"`
	} `json:"service"`
}

func (c *NPMS) Fetch(ctx context.Context, id evidence.Identity, _ evidence.Window) (evidence.SourcePayload, error) {
	payload := evidence.NPMSPayload{
		IssuedAt:   c.clock.Now().In(evidence.KST),
		CropCode:   id.CropCode,
		RegionCode: id.PestRegionCode,
		RegionName: id.PestRegionName,
	}

	var modelsErr, surveyErr error
	var g errgroup.Group
	g.Go(func() error {
		payload.Models, modelsErr = c.fetchModels(ctx, id)
		payload.ModelsOK = modelsErr == nil
		return modelsErr
	})
	g.Go(func() error {
		runKey, fallback := c.latestRun(ctx, id)
		payload.RunKey, payload.RunKeyFallback = runKey, fallback
		payload.Observations, surveyErr = c.fetchSurvey(ctx, id, runKey)
		payload.ObservationsOK = surveyErr == nil
		return surveyErr
	})
	if err := g.Wait(); err != nil {
		if modelsErr != nil && surveyErr != nil {
			return nil, evidence.Unavailable(c.Name(), errors.Join(modelsErr, surveyErr))
		}
		c.logger.Warn("npms partial fetch", "crop_code", id.CropCode, "region_code", id.PestRegionCode, "error", err)
	}
	return payload, nil
}

func (c *NPMS) fetchModels(ctx context.Context, id evidence.Identity) ([]evidence.NPMSPestModel, error) {
	values := c.values("SVC31")
	values.Set("proxyUrl", "http://localhost/callback")
	values.Set("div_id", "result")
	values.Set("cropList", id.CropCode)

	var resp npmsModelsResponse
	if err := getJSON(ctx, c.httpCfg, c.circuit, c.url(values), &resp); err != nil {
		return nil, fmt.Errorf("SVC31: %w", err)
	}
	return resp.Service.PestModelByKncrList, nil
}

// latestRun lists this year's survey runs for the crop and picks the newest.
// Any listing failure falls back to the configured run key.
func (c *NPMS) latestRun(ctx context.Context, id evidence.Identity) (string, bool) {
	values := c.values("SVC51")
	values.Set("displayCount", "50")
	values.Set("startPoint", "1")
	values.Set("searchExaminYear", strconv.Itoa(c.clock.Now().In(evidence.KST).Year()))
	values.Set("searchKncrCode", id.CropCode)

	var resp npmsRunsResponse
	err := getJSON(ctx, c.httpCfg, c.circuit, c.url(values), &resp)
	if err == nil {
		if key := newestRun(resp.Service.List); key != "" {
			return key, false
		}
		err = errNoRuns
	}
	c.logger.Warn("npms run listing failed, using fallback run key", "fallback_run_key", c.fallbackRunKey, "error", err)
	return c.fallbackRunKey, true
}

func newestRun(runs []npmsRun) string {
	var best npmsRun
	for _, r := range runs {
		if r.InsectKey.String() == "" {
			continue
		}
		if best.InsectKey == "" || r.InputStdrDatetm.String() > best.InputStdrDatetm.String() {
			best = r
		}
	}
	return best.InsectKey.String()
}

func (c *NPMS) fetchSurvey(ctx context.Context, id evidence.Identity, runKey string) ([]evidence.NPMSObservation, error) {
	values := c.values("SVC53")
	values.Set("insectKey", runKey)
	values.Set("sidoCode", id.PestSidoCode)

	var resp npmsSurveyResponse
	if err := getJSON(ctx, c.httpCfg, c.circuit, c.url(values), &resp); err != nil {
		return nil, fmt.Errorf("SVC53: %w", err)
	}
	return resp.Service.StructList, nil
}

func (c *NPMS) values(serviceCode string) url.Values {
	values := url.Values{}
	values.Set("apiKey", c.apiKey)
	values.Set("serviceCode", serviceCode)
	values.Set("serviceType", npmsJSON)
	return values
}

func (c *NPMS) url(values url.Values) string {
	return fmt.Sprintf("%s?%s", strings.TrimRight(c.baseURL, "/"), values.Encode())
}
