package formats

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// fileTemplate is a file name pattern with one named integer field,
// e.g. "cub_{point_number:05}.npy" or "{index:05}.tif"
type fileTemplate struct {
	prefix string
	field  string
	width  int
	zero   bool
	suffix string
}

var fieldRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(?::(0?)(\d*)d?)?\}`)

func parseTemplate(s string) (fileTemplate, error) {
	locs := fieldRe.FindAllStringSubmatchIndex(s, -1)
	if len(locs) != 1 {
		return fileTemplate{}, errors.Errorf("template %q must contain exactly one {field[:width]} placeholder", s)
	}
	loc := locs[0]
	t := fileTemplate{
		prefix: s[:loc[0]],
		field:  s[loc[2]:loc[3]],
		suffix: s[loc[1]:],
	}
	if loc[4] >= 0 {
		t.zero = s[loc[4]:loc[5]] == "0"
	}
	if loc[6] >= 0 && loc[7] > loc[6] {
		w, err := strconv.Atoi(s[loc[6]:loc[7]])
		if err != nil {
			return fileTemplate{}, errors.Wrapf(err, "template %q width", s)
		}
		t.width = w
	}
	if strings.ContainsAny(t.prefix+t.suffix, "{}") {
		return fileTemplate{}, errors.Errorf("template %q has unbalanced braces", s)
	}
	return t, nil
}

// Format renders the file name for n
func (t fileTemplate) Format(n int) string {
	var num string
	switch {
	case t.zero && t.width > 0:
		num = fmt.Sprintf("%0*d", t.width, n)
	case t.width > 0:
		num = fmt.Sprintf("%*d", t.width, n)
	default:
		num = strconv.Itoa(n)
	}
	return t.prefix + num + t.suffix
}

// Field is the datum kwarg the template is indexed by
func (t fileTemplate) Field() string {
	return t.field
}
