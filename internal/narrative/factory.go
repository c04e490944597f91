package narrative

import (
	"fmt"

	"github.com/nexis-health/nexis-backend/internal/config"
	"github.com/nexis-health/nexis-backend/internal/narrative/mock"
	"github.com/nexis-health/nexis-backend/internal/narrative/openai"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

// NewProvider constructs the appropriate narrative provider based on config.
// Called once at server startup.
func NewProvider(cfg config.NarrativeConfig) (models.NarrativeProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.Timeout), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown narrative provider %q: must be one of openai, mock", cfg.Provider)
	}
}
