package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/anhofmann/aicore-go/internal/domain"
	"github.com/anhofmann/aicore-go/internal/transport"
)

// DeploymentResolver turns a model configuration into a running
// deployment id.
type DeploymentResolver interface {
	Resolve(ctx context.Context, backend domain.Backend, cfg domain.StrategyConfig) (string, error)
}

// scenario ids of the two backends in the deployment catalog.
var scenarioByBackend = map[domain.Backend]string{
	domain.BackendOrchestration:    "orchestration",
	domain.BackendFoundationModels: "foundation-models",
}

// deploymentEntry is one catalog row of the lifecycle API.
type deploymentEntry struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Details struct {
		Resources struct {
			BackendDetails struct {
				Model struct {
					Name    string `json:"name"`
					Version string `json:"version"`
				} `json:"model"`
			} `json:"backend_details"`
		} `json:"resources"`
	} `json:"details"`
}

type deploymentList struct {
	Count     int               `json:"count"`
	Resources []deploymentEntry `json:"resources"`
}

// APIResolver resolves deployments through the lifecycle API
// (/v2/lm/deployments). It holds no cache; callers memoize per handle.
type APIResolver struct {
	caller *transport.Caller
	logger *slog.Logger
}

// NewAPIResolver creates an APIResolver.
func NewAPIResolver(caller *transport.Caller, logger *slog.Logger) *APIResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIResolver{caller: caller, logger: logger}
}

// Resolve returns a directly configured deployment id unchanged, and
// otherwise picks the first running deployment of the backend's scenario
// whose served model matches name and version. Version "latest" or empty
// matches any version.
func (r *APIResolver) Resolve(ctx context.Context, backend domain.Backend, cfg domain.StrategyConfig) (string, error) {
	if id, ok := cfg.DeploymentRef(); ok {
		return id, nil
	}

	scenario, ok := scenarioByBackend[backend]
	if !ok {
		return "", &domain.ValidationError{
			Field:   "backend",
			Message: fmt.Sprintf("unknown backend %q", backend),
		}
	}

	path := fmt.Sprintf("/v2/lm/deployments?scenarioId=%s&status=RUNNING", url.QueryEscape(scenario))
	var list deploymentList
	if _, err := r.caller.GetJSON(ctx, path, &list); err != nil {
		return "", domain.WrapAPIError(err, "resolve-deployment", backend, r.caller.BaseURL(), domain.RequestSummary{
			Backend:   backend,
			Operation: "resolve-deployment",
		})
	}

	wantName := cfg.ModelName
	if wantName == "" {
		wantName = cfg.ModelID
	}
	wantVersion := cfg.ModelVersion

	for _, entry := range list.Resources {
		model := entry.Details.Resources.BackendDetails.Model

		// The orchestration scenario serves every model through one
		// deployment and reports none in the catalog row.
		if backend == domain.BackendOrchestration && model.Name == "" {
			r.logger.Debug("resolved orchestration deployment", slog.String("deployment", entry.ID))
			return entry.ID, nil
		}

		if !strings.EqualFold(model.Name, wantName) {
			continue
		}
		if wantVersion != "" && wantVersion != "latest" && !strings.EqualFold(model.Version, wantVersion) {
			continue
		}
		r.logger.Debug("resolved deployment",
			slog.String("model", wantName),
			slog.String("deployment", entry.ID))
		return entry.ID, nil
	}

	return "", &domain.ValidationError{
		Field:   "deploymentId",
		Message: fmt.Sprintf("no running deployment found for model %q (scenario %s)", wantName, scenario),
	}
}
