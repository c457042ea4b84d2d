package services

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filestore/internal/application/roots"
	"filestore/internal/domain/models"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Relocator moves resource files to a new root and records the move.
// Resource documents are never rewritten; the move is replayed through the root map.
type Relocator struct {
	store    *StoreService
	resolver *Resolver
	roots    *roots.Map
	log      logr.Logger
	now      func() time.Time
}

// NewRelocator creates a new Relocator
func NewRelocator(store *StoreService, resolver *Resolver, rm *roots.Map, log logr.Logger) *Relocator {
	return &Relocator{
		store:    store,
		resolver: resolver,
		roots:    rm,
		log:      log.WithName("relocator"),
		now:      time.Now,
	}
}

// ChangeRoot copies every file of the resource under newRoot, optionally removing
// the originals, and appends a relocation record
func (rl *Relocator) ChangeRoot(ctx context.Context, resourceID, newRoot string, removeOrigin bool) (*models.Relocation, error) {
	if newRoot == "" {
		return nil, errors.New("new root is empty")
	}
	res, err := rl.store.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	oldRoot := rl.roots.ResolveResource(*res)
	if filepath.Clean(oldRoot) == filepath.Clean(newRoot) {
		return nil, errors.Errorf("resource '%s' already lives under '%s'", resourceID, newRoot)
	}
	files, err := rl.resolver.GetFileList(ctx, resourceID)
	if err != nil {
		return nil, errors.WithMessagef(err, "change root of '%s'", resourceID)
	}

	moves := make([][2]string, 0, len(files))
	for _, src := range files {
		rel, err := filepath.Rel(oldRoot, src)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, errors.Errorf("file '%s' is outside root '%s'", src, oldRoot)
		}
		moves = append(moves, [2]string{src, filepath.Join(newRoot, rel)})
	}
	var copied []string
	rollback := func() {
		for _, dst := range copied {
			if rerr := os.Remove(dst); rerr != nil {
				rl.log.Error(rerr, "roll back copy", "resourceID", resourceID, "file", dst)
			}
		}
	}
	for _, m := range moves {
		created, err := copyFile(m[0], m[1])
		if err != nil {
			rollback()
			return nil, errors.WithMessagef(err, "copy '%s'", m[0])
		}
		if created {
			copied = append(copied, m[1])
		}
	}

	rec := models.Relocation{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		Cmd:        models.RelocationChangeRoot,
		OldRoot:    oldRoot,
		NewRoot:    newRoot,
		Removed:    removeOrigin,
		Time:       rl.now().UTC(),
	}
	if err = rl.store.InsertRelocation(ctx, rec); err != nil {
		rollback()
		return nil, errors.WithMessagef(err, "record relocation of '%s'", resourceID)
	}
	if removeOrigin {
		for _, m := range moves {
			if err = os.Remove(m[0]); err != nil {
				rl.log.Error(err, "remove original", "resourceID", resourceID, "file", m[0])
			}
		}
	}
	rl.log.Info("resource relocated", "resourceID", resourceID, "from", oldRoot, "to", newRoot, "files", len(moves))
	return &rec, nil
}

// History lists relocations of the resource in time order
func (rl *Relocator) History(ctx context.Context, resourceID string) ([]models.Relocation, error) {
	if _, err := rl.store.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}
	return rl.store.ListRelocations(ctx, resourceID)
}

// copyFile copies src to dst and reports whether dst was created. An existing
// dst is accepted when it already holds the same bytes and is never overwritten.
func copyFile(src, dst string) (bool, error) {
	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close() //nolint:errcheck
	st, err := in.Stat()
	if err != nil {
		return false, err
	}
	if dst == src {
		return false, nil
	}
	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, st.Mode().Perm())
	if os.IsExist(err) {
		same, cerr := sameContent(in, st.Size(), dst)
		if cerr != nil {
			return false, cerr
		}
		if !same {
			return false, errors.Errorf("'%s' already exists with different content", dst)
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return false, err
	}
	if err = out.Close(); err != nil {
		_ = os.Remove(dst)
		return false, err
	}
	return true, nil
}

func sameContent(in io.Reader, size int64, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close() //nolint:errcheck
	st, err := f.Stat()
	if err != nil {
		return false, err
	}
	if !st.Mode().IsRegular() || st.Size() != size {
		return false, nil
	}
	a, b := bufio.NewReader(in), bufio.NewReader(f)
	for {
		x, errA := a.ReadByte()
		y, errB := b.ReadByte()
		if errA == io.EOF && errB == io.EOF {
			return true, nil
		}
		if errA != nil && errA != io.EOF {
			return false, errA
		}
		if errB != nil && errB != io.EOF {
			return false, errB
		}
		if errA != nil || errB != nil || x != y {
			return false, nil
		}
	}
}
