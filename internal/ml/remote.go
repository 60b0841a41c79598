package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/race-predictor/internal/config"
	"github.com/yourusername/race-predictor/internal/logger"
	"github.com/yourusername/race-predictor/internal/models"
)

const (
	inferPath       = "/infer"
	healthPath      = "/health"
	maxErrorBodyLen = 512
)

// inferenceRequest is the body sent to POST /infer
type inferenceRequest struct {
	RaceID       int64   `json:"race_id"`
	ModelVersion *string `json:"model_version,omitempty"`
}

type remoteRanking struct {
	EntryID     int64           `json:"race_entry_id"`
	Probability decimal.Decimal `json:"probability"`
	Rank        int             `json:"rank"`
}

// inferenceResponse is the body returned by POST /infer
type inferenceResponse struct {
	RaceID       int64           `json:"race_id"`
	ModelVersion string          `json:"model_version"`
	Rankings     []remoteRanking `json:"rankings"`
	ElapsedMs    int64           `json:"elapsed_ms"`
}

type raceIDKey struct{}

// RemoteGateway calls an external inference service over HTTP.
//
// Transport errors, timeouts, 5xx responses and 2xx bodies that cannot be
// decoded are retried inside the gateway up to the configured attempt count. Once the gateway gives up the error it
// returns is final: the orchestrator does not retry it again.
type RemoteGateway struct {
	cfg     config.InferenceConfig
	baseURL string
	limiter *rate.Limiter
	log     *logger.PredictionLogger

	mu     sync.Mutex
	client *retryablehttp.Client
}

// NewRemoteGateway creates a gateway for the configured inference service.
// The HTTP client is created on first use and can be released with Close.
func NewRemoteGateway(cfg config.InferenceConfig, log *logrus.Logger) *RemoteGateway {
	g := &RemoteGateway{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		log:     logger.NewPredictionLogger(log),
	}
	if cfg.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return g
}

func (g *RemoteGateway) getClient() *retryablehttp.Client {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client == nil {
		g.client = g.newClient()
	}
	return g.client
}

func (g *RemoteGateway) newClient() *retryablehttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = g.cfg.Timeout()
	if transport, ok := retryClient.HTTPClient.Transport.(*http.Transport); ok && g.cfg.MaxIdleConns > 0 {
		transport.MaxIdleConns = g.cfg.MaxIdleConns
		transport.MaxIdleConnsPerHost = g.cfg.MaxIdleConns
	}

	attempts := g.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryClient.RetryMax = attempts - 1
	retryClient.RetryWaitMin = g.cfg.RetryWaitMin()
	retryClient.RetryWaitMax = g.cfg.RetryWaitMax()
	retryClient.CheckRetry = inferenceRetryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	// attempts are logged through the hook instead of the client's own logger
	retryClient.Logger = nil
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, retry int) {
		RemoteAttemptsTotal.Inc()
		raceID, _ := req.Context().Value(raceIDKey{}).(int64)
		g.log.LogRemoteAttempt(raceID, retry+1, req.URL.String())
	}

	return retryClient
}

// Close releases pooled connections. A later call recreates the client.
func (g *RemoteGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		g.client.HTTPClient.CloseIdleConnections()
		g.client = nil
	}
	return nil
}

// Infer requests rankings for the snapshot's race from the inference service
func (g *RemoteGateway) Infer(ctx context.Context, snapshot *models.RaceSnapshot, modelID, _ string) (*models.InferenceResult, error) {
	if snapshot == nil || snapshot.Len() == 0 {
		var raceID int64
		if snapshot != nil {
			raceID = snapshot.RaceID()
		}
		return nil, models.NewEmptyEntriesError(raceID)
	}
	raceID := snapshot.RaceID()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, models.NewTimeoutError(false, err, "rate limiter wait for race %d", raceID)
		}
	}

	body, err := json.Marshal(inferenceRequest{RaceID: raceID, ModelVersion: models.OptionalString(modelID)})
	if err != nil {
		return nil, models.NewModelError(false, err, "failed to marshal inference request")
	}

	req, err := retryablehttp.NewRequestWithContext(context.WithValue(ctx, raceIDKey{}, raceID), http.MethodPost, g.baseURL+inferPath, body)
	if err != nil {
		return nil, models.NewModelError(false, err, "failed to build inference request")
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", g.cfg.APIKey)
	}

	resp, err := g.getClient().Do(req)
	if err != nil {
		if isTimeout(err) {
			RemoteErrorsTotal.WithLabelValues("timeout").Inc()
			g.log.LogRemoteFailure(raceID, 0, err)
			return nil, models.NewTimeoutError(false, err, "inference request for race %d timed out after %s", raceID, g.cfg.Timeout())
		}
		RemoteErrorsTotal.WithLabelValues("network").Inc()
		g.log.LogRemoteFailure(raceID, 0, err)
		return nil, models.NewModelError(false, err, "inference request for race %d failed", raceID)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, raceID); err != nil {
		g.log.LogRemoteFailure(raceID, resp.StatusCode, err)
		return nil, err
	}

	decoded, err := readInferenceResponse(resp)
	if err != nil {
		RemoteErrorsTotal.WithLabelValues("decode").Inc()
		g.log.LogRemoteFailure(raceID, resp.StatusCode, err)
		return nil, models.NewModelError(false, err, "failed to decode inference response for race %d", raceID)
	}

	return toInferenceResult(decoded)
}

// HealthCheck calls GET /health on the inference service without retries
func (g *RemoteGateway) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+healthPath, nil)
	if err != nil {
		return err
	}

	resp, err := g.getClient().HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrInferenceUnavailable, resp.StatusCode)
	}
	return nil
}

// inferenceRetryPolicy retries transport errors, server errors and successful
// responses whose body is not a valid inference response
func inferenceRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return true, nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, decodeErr := readInferenceResponse(resp); decodeErr != nil {
			return true, nil
		}
	}
	return false, nil
}

// readInferenceResponse buffers and validates a 2xx body. The body stays
// readable afterwards so the response can be decoded again.
func readInferenceResponse(resp *http.Response) (*inferenceResponse, error) {
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	var decoded inferenceResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	for _, r := range decoded.Rankings {
		probability := r.Probability.Round(models.ProbabilityPlaces)
		if probability.IsNegative() || probability.GreaterThan(probabilityOne) {
			return nil, fmt.Errorf("%w: probability %s for entry %d out of range", ErrInvalidResponse, probability, r.EntryID)
		}
	}
	return &decoded, nil
}

func checkStatus(resp *http.Response, raceID int64) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		RemoteErrorsTotal.WithLabelValues("not_found").Inc()
		return models.NewModelError(false, ErrInferenceNotFound, "race %d not found in inference service", raceID)
	case resp.StatusCode >= http.StatusInternalServerError:
		RemoteErrorsTotal.WithLabelValues("server_error").Inc()
		return models.NewModelError(false, ErrInferenceUnavailable, "inference service returned %d: %s", resp.StatusCode, string(snippet))
	default:
		RemoteErrorsTotal.WithLabelValues("client_error").Inc()
		return models.NewModelError(false, ErrInferenceRejected, "inference request rejected with %d: %s", resp.StatusCode, string(snippet))
	}
}

func toInferenceResult(decoded *inferenceResponse) (*models.InferenceResult, error) {
	if len(decoded.Rankings) == 0 {
		return nil, models.NewEmptyResultError(decoded.ModelVersion)
	}

	remote := make([]remoteRanking, len(decoded.Rankings))
	copy(remote, decoded.Rankings)
	sort.SliceStable(remote, func(i, j int) bool {
		return remote[i].Rank < remote[j].Rank
	})

	rankings := make([]models.InferenceRanking, 0, len(remote))
	for _, r := range remote {
		rankings = append(rankings, models.InferenceRanking{
			EntryID:     r.EntryID,
			Probability: r.Probability.Round(models.ProbabilityPlaces),
		})
	}

	elapsed := decoded.ElapsedMs
	if elapsed < 0 {
		elapsed = 0
	}

	return &models.InferenceResult{
		Rankings:             rankings,
		FeatureContributions: []models.FeatureContribution{},
		ModelVersion:         decoded.ModelVersion,
		ElapsedMs:            elapsed,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
