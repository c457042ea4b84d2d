package formats

import (
	"filestore/internal/domain/ports"
)

// Registrar accepts handler factories
type Registrar interface {
	Register(spec string, factory ports.HandlerFactory) error
}

// RegisterBuiltins installs the npy, npy_series and TIFF_STACK handlers
func RegisterBuiltins(r Registrar) error {
	for spec, f := range map[string]ports.HandlerFactory{
		SpecNpy:       NpyFactory{},
		SpecNpySeries: NpySeriesFactory{},
		SpecTiffStack: TiffStackFactory{},
	} {
		if err := r.Register(spec, f); err != nil {
			return err
		}
	}
	return nil
}
