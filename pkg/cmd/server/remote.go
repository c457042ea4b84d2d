package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"filestore/internal/api/resolver"
	"filestore/internal/application/utils"
	"filestore/internal/domain/models"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
	"sigs.k8s.io/yaml"
)

// remote runs fn against the configured server, retrying while it is unavailable
func remote(ctx context.Context, o *Options, fn func(context.Context, *resolver.ResolverClient) error) error {
	cfg, err := o.Config()
	if err != nil {
		return err
	}
	creds, err := cfg.GetTransportCredentials()
	if err != nil {
		return err
	}
	conn, err := grpc.NewClient(dialTarget(cfg.Settings.GRPCAddr), grpc.WithTransportCredentials(creds))
	if err != nil {
		return errors.Wrapf(err, "dial '%s'", cfg.Settings.GRPCAddr)
	}
	defer conn.Close()
	client := resolver.NewResolverClient(conn)
	return utils.ExecuteWithRetry(ctx, o.Retry, func() error {
		return fn(ctx, client)
	})
}

// dialTarget turns a listen address such as ":9090" into a dialable one
func dialTarget(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host != "" {
		return addr
	}
	return net.JoinHostPort("localhost", port)
}

func printYAML(w io.Writer, v interface{}) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode output")
	}
	_, err = w.Write(b)
	return err
}

// parseKwargs accepts a YAML or JSON object
func parseKwargs(s string) (models.Kwargs, error) {
	kw := models.Kwargs{}
	if s == "" {
		return kw, nil
	}
	if err := yaml.Unmarshal([]byte(s), &kw); err != nil {
		return nil, errors.Wrap(err, "parse kwargs")
	}
	return kw, nil
}

type arrayView struct {
	Shape []int     `json:"shape"`
	Dtype string    `json:"dtype"`
	Data  []float64 `json:"data"`
}

type relocationView struct {
	ID           string `json:"id"`
	ResourceID   string `json:"resource_id"`
	Cmd          string `json:"cmd"`
	OldRoot      string `json:"old_root"`
	NewRoot      string `json:"new_root"`
	RemoveOrigin bool   `json:"remove_origin"`
	Time         string `json:"time"`
}

func toRelocationView(rel models.Relocation) relocationView {
	return relocationView{
		ID:           rel.ID,
		ResourceID:   rel.ResourceID,
		Cmd:          string(rel.Cmd),
		OldRoot:      rel.OldRoot,
		NewRoot:      rel.NewRoot,
		RemoveOrigin: rel.Removed,
		Time:         rel.Time.UTC().Format(time.RFC3339Nano),
	}
}

func newGetCommand(ctx context.Context, o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "get DATUM_ID",
		Short: "Fetch the array a datum refers to",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var arr models.Array
			err := remote(ctx, o, func(ctx context.Context, client *resolver.ResolverClient) error {
				out, err := client.GetData(ctx, wrapperspb.String(args[0]))
				if err != nil {
					return err
				}
				arr, err = resolver.StructToArray(out)
				return err
			})
			if err != nil {
				return err
			}
			return printYAML(c.OutOrStdout(), arrayView{Shape: arr.Shape, Dtype: string(arr.Dtype), Data: arr.Data})
		},
	}
}

func newListCommand(ctx context.Context, o *Options, use, short string,
	call func(*resolver.ResolverClient, context.Context, *wrapperspb.StringValue, ...grpc.CallOption) (*structpb.ListValue, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " RESOURCE_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var items []string
			err := remote(ctx, o, func(ctx context.Context, client *resolver.ResolverClient) error {
				out, err := call(client, ctx, wrapperspb.String(args[0]))
				items = resolver.ListToStrings(out)
				return err
			})
			if err != nil {
				return err
			}
			for _, s := range items {
				fmt.Fprintln(c.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func newSpecsCommand(ctx context.Context, o *Options) *cobra.Command {
	return newListCommand(ctx, o, "specs", "List specs able to read a resource", (*resolver.ResolverClient).GetSpecList)
}

func newFilesCommand(ctx context.Context, o *Options) *cobra.Command {
	return newListCommand(ctx, o, "files", "List files backing a resource", (*resolver.ResolverClient).GetFileList)
}

func newHistoryCommand(ctx context.Context, o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "history RESOURCE_ID",
		Short: "Show relocations of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			views := []relocationView{}
			err := remote(ctx, o, func(ctx context.Context, client *resolver.ResolverClient) error {
				out, err := client.History(ctx, wrapperspb.String(args[0]))
				if err != nil {
					return err
				}
				views = views[:0]
				for _, v := range out.GetValues() {
					rel, err := resolver.ValueToRelocation(v)
					if err != nil {
						return err
					}
					views = append(views, toRelocationView(rel))
				}
				return nil
			})
			if err != nil {
				return err
			}
			return printYAML(c.OutOrStdout(), views)
		},
	}
}

func newInsertResourceCommand(ctx context.Context, o *Options) *cobra.Command {
	var (
		res    models.Resource
		kwargs string
		ps     string
	)
	cmd := &cobra.Command{
		Use:   "insert-resource",
		Short: "Register a resource document",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			kw, err := parseKwargs(kwargs)
			if err != nil {
				return err
			}
			res.ResourceKwargs = kw
			res.PathSemantics = models.PathSemantics(ps)
			doc, err := resolver.ResourceToStruct(res)
			if err != nil {
				return err
			}
			var id string
			err = remote(ctx, o, func(ctx context.Context, client *resolver.ResolverClient) error {
				out, err := client.InsertResource(ctx, doc)
				id = out.GetValue()
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), id)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&res.ID, "id", "", "Resource id (generated when empty)")
	fs.StringVar(&res.Spec, "spec", "", "Format spec, e.g. npy or TIFF_STACK")
	fs.StringVar(&res.Root, "root", "", "Logical root")
	fs.StringVar(&res.ResourcePath, "resource-path", "", "Path below the root")
	fs.StringVar(&kwargs, "kwargs", "", "Resource kwargs as a YAML or JSON object")
	fs.StringVar(&ps, "path-semantics", string(models.PathSemanticsPosix), "posix or windows")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

func newInsertDatumCommand(ctx context.Context, o *Options) *cobra.Command {
	var (
		d      models.Datum
		kwargs string
	)
	cmd := &cobra.Command{
		Use:   "insert-datum",
		Short: "Register a datum document",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			kw, err := parseKwargs(kwargs)
			if err != nil {
				return err
			}
			d.DatumKwargs = kw
			doc, err := resolver.DatumToStruct(d)
			if err != nil {
				return err
			}
			var id string
			err = remote(ctx, o, func(ctx context.Context, client *resolver.ResolverClient) error {
				out, err := client.InsertDatum(ctx, doc)
				id = out.GetValue()
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), id)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&d.ID, "id", "", "Datum id (generated when empty)")
	fs.StringVar(&d.ResourceID, "resource-id", "", "Id of the owning resource")
	fs.StringVar(&kwargs, "kwargs", "", "Datum kwargs as a YAML or JSON object")
	_ = cmd.MarkFlagRequired("resource-id")
	return cmd
}
