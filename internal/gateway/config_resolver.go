package gateway

import (
	"encoding/json"
	"os"

	"github.com/pmundhra/plum-ems/internal/errs"
)

// ConfigResolver looks up per-insurer gateway configuration by insurer id.
type ConfigResolver interface {
	Resolve(insurerID string) (InsurerConfig, bool)
}

// StaticResolver resolves InsurerConfig from a fixed, in-memory map loaded
// once at startup from a JSON file (GatewayConfig.InsurerConfigPath).
// Insurer onboarding in this system is an infrequent, operator-driven
// change, so a file reloaded on process restart is sufficient; there is no
// insurer-config table in the relational schema.
type StaticResolver struct {
	configs map[string]InsurerConfig
}

// NewStaticResolver loads insurer configs from a JSON file shaped as
// {"insurer_id": {"protocol": "REST_API", "url": "...", "method": "POST"}}.
// A missing file yields an empty resolver rather than an error, so the
// gateway can start before insurers are configured.
func NewStaticResolver(path string) (*StaticResolver, error) {
	configs := map[string]InsurerConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &StaticResolver{configs: configs}, nil
		}
		return nil, errs.Wrap(errs.ErrCodeGatewayConfigMissing, errs.KindTechnicalExhausted, "read insurer config file", err)
	}

	var raw map[string]struct {
		Protocol string `json:"protocol"`
		URL      string `json:"url"`
		Method   string `json:"method"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.ErrCodeGatewayConfigMissing, errs.KindTechnicalExhausted, "decode insurer config file", err)
	}

	for insurerID, entry := range raw {
		configs[insurerID] = InsurerConfig{
			InsurerID: insurerID,
			Protocol:  entry.Protocol,
			URL:       entry.URL,
			Method:    entry.Method,
		}
	}
	return &StaticResolver{configs: configs}, nil
}

// Resolve implements ConfigResolver.
func (r *StaticResolver) Resolve(insurerID string) (InsurerConfig, bool) {
	cfg, ok := r.configs[insurerID]
	return cfg, ok
}
