package shipping

import (
	"fmt"
	"sort"

	"github.com/mfigueroa/ordercore-backend/pkg/config"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
)

// Registry resolves carrier codes to their integrations. Carriers are
// registered once at construction; lookups never mutate.
type Registry struct {
	carriers map[enums.CarrierCode]Carrier
}

// NewRegistry builds the registry with every supported carrier.
func NewRegistry(cfg config.ShippingConfig, logg *logger.Logger) *Registry {
	r := &Registry{carriers: map[enums.CarrierCode]Carrier{}}
	r.register(newDelhivery(cfg, logg))
	r.register(newBluedart(cfg, logg))
	r.register(newDTDC(cfg, logg))
	return r
}

func (r *Registry) register(c Carrier) {
	r.carriers[c.Code()] = c
}

// Get returns the carrier for a code, or a validation error naming the
// supported codes.
func (r *Registry) Get(code enums.CarrierCode) (Carrier, error) {
	if c, ok := r.carriers[code]; ok {
		return c, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown carrier %q", code)).
		WithDetails(map[string]any{"supported": r.Codes()})
}

// Codes lists the registered carrier codes, sorted for stable output.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.carriers))
	for code := range r.carriers {
		codes = append(codes, string(code))
	}
	sort.Strings(codes)
	return codes
}
