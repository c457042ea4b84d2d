package formats

import (
	"bufio"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
)

// SpecTiffStack a directory of single-frame TIFF files
const SpecTiffStack = "TIFF_STACK"

const defaultTiffTemplate = "{index:05}.tif"

type tiffStackParams struct {
	Template string `mapstructure:"template"`
}

// TiffStackFactory lists the frames at construction and validates the first one
type TiffStackFactory struct{}

// Construct impl ports.HandlerFactory
func (TiffStackFactory) Construct(_ context.Context, loc models.Location, kw models.Kwargs) (ports.Handler, error) {
	p := tiffStackParams{Template: defaultTiffTemplate}
	if err := decodeParams(kw, &p); err != nil {
		return nil, err
	}
	tmpl, err := parseTemplate(p.Template)
	if err != nil {
		return nil, err
	}
	dir := loc.Path()
	var frames []string
	for i := 0; ; i++ {
		path := filepath.Join(dir, tmpl.Format(i))
		if _, err = os.Stat(path); err != nil {
			break
		}
		frames = append(frames, path)
	}
	if len(frames) == 0 {
		return nil, errors.Errorf("no frames matching %q in '%s'", p.Template, dir)
	}
	if _, err = readTiffFrame(frames[0]); err != nil {
		return nil, err
	}
	return &tiffStackHandler{tmpl: tmpl, frames: frames}, nil
}

type tiffStackHandler struct {
	tmpl   fileTemplate
	frames []string
}

func (h *tiffStackHandler) frame(kw models.Kwargs) (string, error) {
	i, err := intArg(kw, h.tmpl.Field())
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(h.frames) {
		return "", errors.Errorf("%s %d out of range [0, %d)", h.tmpl.Field(), i, len(h.frames))
	}
	return h.frames[i], nil
}

func (h *tiffStackHandler) Decode(_ context.Context, kw models.Kwargs) (models.Array, error) {
	path, err := h.frame(kw)
	if err != nil {
		return models.Array{}, err
	}
	return readTiffFrame(path)
}

// FileList impl ports.FileLister
func (h *tiffStackHandler) FileList(kws []models.Kwargs) ([]string, error) {
	ret := make([]string, 0, len(kws))
	for _, kw := range kws {
		path, err := h.frame(kw)
		if err != nil {
			return nil, err
		}
		ret = append(ret, path)
	}
	return ret, nil
}

func (h *tiffStackHandler) Close() error {
	return nil
}

// readTiffFrame decodes one frame into a 2-D gray array
func readTiffFrame(path string) (models.Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Array{}, err
	}
	defer f.Close() //nolint:errcheck
	img, err := tiff.Decode(bufio.NewReader(f))
	if err != nil {
		return models.Array{}, errors.Wrapf(err, "decode '%s'", path)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float64, 0, w*h)

	switch m := img.(type) {
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				data = append(data, float64(m.GrayAt(x, y).Y))
			}
		}
		return models.NewArray([]int{h, w}, models.DtypeUint8, data)
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				data = append(data, float64(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y))
			}
		}
		return models.NewArray([]int{h, w}, models.DtypeUint16, data)
	}
}
