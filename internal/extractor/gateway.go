package extractor

import (
	"context"
	"log/slog"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/common"
	"github.com/freightdocs/bol-pipeline/internal/entity"
)

// Gateway fronts the extraction capability. It routes to the live
// backend when one is configured and original bytes are available, and
// to the deterministic mock otherwise. Live faults fall back to the
// mock exactly once; the triage engine always receives an outcome,
// never a transport error.
type Gateway struct {
	live *LiveClient // nil when unconfigured
	mock *MockExtractor
	log  *slog.Logger
}

// NewGateway builds a gateway for the given configuration. Callers may
// construct independent gateways with different configurations in the
// same process; nothing here is global.
func NewGateway(cfg common.ExtractorConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{mock: NewMockExtractor(), log: logger}
	if cfg.Configured() {
		g.live = NewLiveClient(cfg, logger)
		logger.Info("extractor gateway using live backend", "endpoint", cfg.Endpoint)
	} else {
		logger.Info("extractor gateway unconfigured, using mock backend")
	}
	return g
}

func (g *Gateway) Extract(ctx context.Context, content []byte, filename, contentType string) (*Outcome, error) {
	// Retries arrive without the original bytes; the live engine cannot
	// help there, so go straight to the deterministic fallback.
	if g.live != nil && len(content) > 0 {
		out, err := g.live.Extract(ctx, content, filename, contentType)
		if err == nil {
			return out, nil
		}
		g.log.Warn("live extraction failed, falling back to mock",
			"filename", filename, "error", err)
	}

	out, err := g.mock.Extract(ctx, content, filename, contentType)
	if err != nil {
		// Context cancellation is the only way the mock fails. Surface
		// it as a synthesized outcome so callers still get a shape.
		g.log.Error("fallback extraction failed", "filename", filename, "error", err)
		return &Outcome{
			Failure: &entity.ProcessingError{
				Code:    constants.ErrCodeProcessingFailed,
				Message: "extraction failed and no fallback outcome could be produced",
				Details: map[string]any{"cause": err.Error()},
			},
		}, nil
	}
	return out, nil
}
