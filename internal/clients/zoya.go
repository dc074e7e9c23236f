package clients

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/amanabot/amana/internal/domain"
)

const (
	zoyaLiveURL    = "https://api.zoya.finance/graphql"
	zoyaSandboxURL = "https://sandbox-api.zoya.finance/graphql"
)

const complianceReportQuery = `
query GetReport($symbol: String!) {
  basicCompliance {
    report(symbol: $symbol) {
      symbol
      name
      status
      reportDate
    }
  }
}`

// ZoyaClient screens equities for Shariah compliance through the Zoya
// GraphQL API. Per-symbol queries are rate limited to stay inside the
// free-tier quota.
type ZoyaClient struct {
	http    *resty.Client
	url     string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewZoyaClient creates the compliance provider. sandbox selects the
// sandbox endpoint with its canned responses.
func NewZoyaClient(apiKey string, sandbox bool, logger *zap.Logger) *ZoyaClient {
	url := zoyaLiveURL
	if sandbox {
		url = zoyaSandboxURL
	}
	return &ZoyaClient{
		http: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("Authorization", apiKey).
			SetHeader("Content-Type", "application/json"),
		url:     url,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		logger:  logger,
	}
}

type zoyaResponse struct {
	Data struct {
		BasicCompliance struct {
			Report *zoyaReport `json:"report"`
		} `json:"basicCompliance"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type zoyaReport struct {
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	ReportDate string `json:"reportDate"`
}

// ScreenSymbol fetches the compliance report for one equity ticker.
// Unknown tickers come back as doubtful; transport failures are errors
// left to the caller to downgrade.
func (c *ZoyaClient) ScreenSymbol(ctx context.Context, symbol string) (domain.ComplianceRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.ComplianceRecord{}, err
	}

	body := map[string]any{
		"query":     complianceReportQuery,
		"variables": map[string]string{"symbol": symbol},
	}

	var out zoyaResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return domain.ComplianceRecord{}, errors.Wrapf(err, "zoya request failed for %s", symbol)
	}
	if resp.IsError() {
		return domain.ComplianceRecord{}, errors.Errorf("zoya returned status %d for %s", resp.StatusCode(), symbol)
	}
	// GraphQL errors arrive with HTTP 200
	if len(out.Errors) > 0 {
		return domain.ComplianceRecord{}, errors.Errorf("zoya graphql error for %s: %s", symbol, out.Errors[0].Message)
	}

	report := out.Data.BasicCompliance.Report
	if report == nil {
		return domain.ComplianceRecord{
			Symbol:    symbol,
			Status:    domain.StatusDoubtful,
			Source:    "provider",
			Criteria:  map[string]string{"detail": "no report found"},
			UpdatedAt: time.Now().UTC(),
		}, nil
	}

	return domain.ComplianceRecord{
		Symbol:    symbol,
		Status:    normalizeZoyaStatus(report.Status),
		Source:    "provider",
		Criteria:  map[string]string{"provider_status": report.Status, "report_date": report.ReportDate},
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func normalizeZoyaStatus(status string) domain.ComplianceStatus {
	switch status {
	case "COMPLIANT":
		return domain.StatusHalal
	case "NON_COMPLIANT":
		return domain.StatusNotHalal
	case "DOUBTFUL":
		return domain.StatusDoubtful
	default:
		return domain.StatusDoubtful
	}
}
