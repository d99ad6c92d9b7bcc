package exchange

import (
	"log"
	"strings"

	"github.com/arbi-bot/internal/config"
)

// Factory builds an exchange instance from the application config.
// Implementations register themselves in their package init.
type Factory func(cfg *config.Config) (Exchange, error)

var factories = map[string]Factory{}

// knownUnimplemented are provider names the config may reference before an
// integration exists for them. Enabling one fails construction explicitly
// instead of reporting an unknown name.
var knownUnimplemented = map[string]bool{
	"gate":    true,
	"gateio":  true,
	"gate.io": true,
}

// RegisterFactory makes an exchange implementation available to
// NewManagerFromConfig under the given name
func RegisterFactory(name string, f Factory) {
	factories[strings.ToLower(name)] = f
}

// NewManagerFromConfig builds a Manager containing every enabled exchange
// in the config. It fails if any enabled entry names an unimplemented or
// unknown provider.
func NewManagerFromConfig(cfg *config.Config) (*Manager, error) {
	manager := NewManager()

	for name, exCfg := range cfg.Exchanges {
		if !exCfg.Enabled {
			log.Printf("[Manager] Skipping disabled exchange %s", name)
			continue
		}

		log.Printf("[Manager] Loading exchange %s from config", name)

		ex, err := createExchange(name, cfg)
		if err != nil {
			return nil, err
		}
		manager.Register(ex)
	}

	return manager, nil
}

func createExchange(name string, cfg *config.Config) (Exchange, error) {
	key := strings.ToLower(name)
	if factory, ok := factories[key]; ok {
		return factory(cfg)
	}
	if knownUnimplemented[key] {
		return nil, NewInternalError("exchange %s is not yet implemented", name)
	}
	return nil, NewInternalError("unknown exchange: %s", name)
}
