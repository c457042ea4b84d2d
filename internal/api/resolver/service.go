package resolver

import (
	"context"

	"filestore/internal/application/services"
	"filestore/internal/domain/models"

	"github.com/go-logr/logr"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Server implements filestore.v1.Resolver
type Server struct {
	resolver  *services.Resolver
	store     *services.StoreService
	relocator *services.Relocator
	log       logr.Logger
}

var _ ResolverServer = (*Server)(nil)

// NewServer creates a new Server. relocator may be nil, History then reads the store directly.
func NewServer(resolver *services.Resolver, store *services.StoreService, relocator *services.Relocator, log logr.Logger) *Server {
	return &Server{
		resolver:  resolver,
		store:     store,
		relocator: relocator,
		log:       log,
	}
}

func (s *Server) fail(method string, err error) error {
	st := ToStatus(err)
	s.log.V(2).Info("request failed", "method", method, "error", err.Error())
	return st
}

// GetData resolves a datum id into its array
func (s *Server) GetData(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	arr, err := s.resolver.GetData(ctx, req.GetValue())
	if err != nil {
		return nil, s.fail("GetData", err)
	}
	return ArrayToStruct(arr), nil
}

// GetSpecList lists specs able to read a resource
func (s *Server) GetSpecList(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	specs, err := s.resolver.GetSpecList(ctx, req.GetValue())
	if err != nil {
		return nil, s.fail("GetSpecList", err)
	}
	return StringsToList(specs), nil
}

// GetFileList lists files a resource's datums live in
func (s *Server) GetFileList(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	files, err := s.resolver.GetFileList(ctx, req.GetValue())
	if err != nil {
		return nil, s.fail("GetFileList", err)
	}
	return StringsToList(files), nil
}

// History lists relocations of a resource in time order
func (s *Server) History(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	var (
		rels []models.Relocation
		err  error
	)
	if s.relocator != nil {
		rels, err = s.relocator.History(ctx, req.GetValue())
	} else {
		rels, err = s.store.ListRelocations(ctx, req.GetValue())
	}
	if err != nil {
		return nil, s.fail("History", err)
	}
	ret := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(rels))}
	for _, rel := range rels {
		v, err := RelocationToValue(rel)
		if err != nil {
			return nil, s.fail("History", err)
		}
		ret.Values = append(ret.Values, v)
	}
	return ret, nil
}

// InsertResource stores a resource document and returns its id
func (s *Server) InsertResource(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	res, err := StructToResource(req)
	if err == nil {
		res.ID, err = s.store.InsertResource(ctx, res)
	}
	if err != nil {
		return nil, s.fail("InsertResource", err)
	}
	return wrapperspb.String(res.ID), nil
}

// InsertDatum stores a datum document and returns its id
func (s *Server) InsertDatum(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	d, err := StructToDatum(req)
	if err == nil {
		d.ID, err = s.store.InsertDatum(ctx, d)
	}
	if err != nil {
		return nil, s.fail("InsertDatum", err)
	}
	return wrapperspb.String(d.ID), nil
}
