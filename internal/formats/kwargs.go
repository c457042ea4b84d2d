package formats

import (
	"filestore/internal/domain/models"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// decodeParams fills params from resource kwargs and rejects unknown keys
func decodeParams(kw models.Kwargs, params interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           params,
	})
	if err != nil {
		return err
	}
	return errors.Wrap(dec.Decode(map[string]interface{}(kw)), "resource kwargs")
}

// intArg extracts a required integral datum kwarg
func intArg(kw models.Kwargs, name string) (int, error) {
	if _, ok := kw[name]; !ok {
		return 0, errors.Errorf("datum kwarg %q is required", name)
	}
	for _, k := range kw.Keys() {
		if k != name {
			return 0, errors.Errorf("unexpected datum kwarg %q", k)
		}
	}
	return kw.Int(name)
}
