package resolver

import (
	"fmt"
	"time"

	"filestore/internal/application/validation"
	"filestore/internal/domain/models"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// Struct fields of a resource document
const (
	fieldResourceID     = "resource_id"
	fieldSpec           = "spec"
	fieldRoot           = "root"
	fieldResourcePath   = "resource_path"
	fieldResourceKwargs = "resource_kwargs"
	fieldPathSemantics  = "path_semantics"
	fieldDatumID        = "datum_id"
	fieldDatumKwargs    = "datum_kwargs"
)

// ArrayToStruct encodes an array as {shape, dtype, data}
func ArrayToStruct(arr models.Array) *structpb.Struct {
	shape := make([]*structpb.Value, len(arr.Shape))
	for i, n := range arr.Shape {
		shape[i] = structpb.NewNumberValue(float64(n))
	}
	data := make([]*structpb.Value, len(arr.Data))
	for i, v := range arr.Data {
		data[i] = structpb.NewNumberValue(v)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"shape": structpb.NewListValue(&structpb.ListValue{Values: shape}),
		"dtype": structpb.NewStringValue(string(arr.Dtype)),
		"data":  structpb.NewListValue(&structpb.ListValue{Values: data}),
	}}
}

// StructToArray decodes the message produced by ArrayToStruct
func StructToArray(s *structpb.Struct) (models.Array, error) {
	f := s.GetFields()
	shapeVals := f["shape"].GetListValue().GetValues()
	shape := make([]int, len(shapeVals))
	for i, v := range shapeVals {
		shape[i] = int(v.GetNumberValue())
	}
	dataVals := f["data"].GetListValue().GetValues()
	data := make([]float64, len(dataVals))
	for i, v := range dataVals {
		data[i] = v.GetNumberValue()
	}
	arr, err := models.NewArray(shape, models.Dtype(f["dtype"].GetStringValue()), data)
	return arr, errors.WithMessage(err, "decode array")
}

// StructToResource reads a resource document
func StructToResource(s *structpb.Struct) (models.Resource, error) {
	f := s.GetFields()
	kw, err := kwargsField(f, fieldResourceKwargs)
	if err != nil {
		return models.Resource{}, err
	}
	return models.Resource{
		ID:             f[fieldResourceID].GetStringValue(),
		Spec:           f[fieldSpec].GetStringValue(),
		Root:           f[fieldRoot].GetStringValue(),
		ResourcePath:   f[fieldResourcePath].GetStringValue(),
		ResourceKwargs: kw,
		PathSemantics:  models.PathSemantics(f[fieldPathSemantics].GetStringValue()),
	}, nil
}

// ResourceToStruct writes a resource document
func ResourceToStruct(r models.Resource) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		fieldResourceID:     r.ID,
		fieldSpec:           r.Spec,
		fieldRoot:           r.Root,
		fieldResourcePath:   r.ResourcePath,
		fieldResourceKwargs: map[string]interface{}(r.ResourceKwargs.Clone()),
		fieldPathSemantics:  string(r.PathSemantics),
	})
}

// StructToDatum reads a datum document
func StructToDatum(s *structpb.Struct) (models.Datum, error) {
	f := s.GetFields()
	kw, err := kwargsField(f, fieldDatumKwargs)
	if err != nil {
		return models.Datum{}, err
	}
	return models.Datum{
		ID:          f[fieldDatumID].GetStringValue(),
		ResourceID:  f[fieldResourceID].GetStringValue(),
		DatumKwargs: kw,
	}, nil
}

// DatumToStruct writes a datum document
func DatumToStruct(d models.Datum) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		fieldDatumID:     d.ID,
		fieldResourceID:  d.ResourceID,
		fieldDatumKwargs: map[string]interface{}(d.DatumKwargs.Clone()),
	})
}

// RelocationToValue writes one history entry
func RelocationToValue(rel models.Relocation) (*structpb.Value, error) {
	return structpb.NewValue(map[string]interface{}{
		"id":            rel.ID,
		"resource_id":   rel.ResourceID,
		"cmd":           string(rel.Cmd),
		"old_root":      rel.OldRoot,
		"new_root":      rel.NewRoot,
		"remove_origin": rel.Removed,
		"time":          rel.Time.UTC().Format(time.RFC3339Nano),
	})
}

// ValueToRelocation reads one history entry
func ValueToRelocation(v *structpb.Value) (models.Relocation, error) {
	f := v.GetStructValue().GetFields()
	if f == nil {
		return models.Relocation{}, fmt.Errorf("history entry is %T, want struct", v.GetKind())
	}
	at, err := time.Parse(time.RFC3339Nano, f["time"].GetStringValue())
	if err != nil {
		return models.Relocation{}, errors.WithMessage(err, "parse relocation time")
	}
	return models.Relocation{
		ID:         f["id"].GetStringValue(),
		ResourceID: f["resource_id"].GetStringValue(),
		Cmd:        models.RelocationCmd(f["cmd"].GetStringValue()),
		OldRoot:    f["old_root"].GetStringValue(),
		NewRoot:    f["new_root"].GetStringValue(),
		Removed:    f["remove_origin"].GetBoolValue(),
		Time:       at,
	}, nil
}

func kwargsField(f map[string]*structpb.Value, name string) (models.Kwargs, error) {
	v, ok := f[name]
	if !ok {
		return models.Kwargs{}, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return models.Kwargs{}, nil
	}
	s := v.GetStructValue()
	if s == nil {
		return nil, validation.NewValidationError(name, "must be an object")
	}
	return models.Kwargs(s.AsMap()), nil
}

// StringsToList encodes a string list
func StringsToList(items []string) *structpb.ListValue {
	vals := make([]*structpb.Value, len(items))
	for i, s := range items {
		vals[i] = structpb.NewStringValue(s)
	}
	return &structpb.ListValue{Values: vals}
}

// ListToStrings decodes a string list
func ListToStrings(l *structpb.ListValue) []string {
	ret := make([]string, 0, len(l.GetValues()))
	for _, v := range l.GetValues() {
		ret = append(ret, v.GetStringValue())
	}
	return ret
}
