package gseb

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ModelExtensions are tried in order when resolving an object's model.
var ModelExtensions = []string{".cmb", ".zar", ".gar"}

// Resolver maps scene objects to model files on disk.
type Resolver struct {
	RomFS string
	MapNo int
}

// ResolverFor derives the romfs root and map number from a table path laid
// out as <romfs>/<dir>/mapNN/<file>.
func ResolverFor(gsebPath string) (Resolver, error) {
	dir := filepath.Dir(gsebPath)
	base := filepath.Base(dir)
	if !strings.HasPrefix(base, "map") {
		return Resolver{}, fmt.Errorf("gseb: %s is not inside a mapNN directory", gsebPath)
	}
	n, err := strconv.Atoi(base[3:])
	if err != nil {
		return Resolver{}, fmt.Errorf("gseb: map directory %q: %w", base, err)
	}
	return Resolver{RomFS: filepath.Dir(filepath.Dir(dir)), MapNo: n}, nil
}

// Base is the extensionless model path for obj.
func (r Resolver) Base(obj *Object) string {
	if obj.FromModelFolder {
		return filepath.Join(r.RomFS, "model", obj.ModelName)
	}
	return filepath.Join(r.RomFS, "mapmdl", fmt.Sprintf("map%d", r.MapNo),
		fmt.Sprintf("room_%02d", obj.RoomNo), obj.ModelName)
}

// Resolve returns the first existing model file for obj, or "" when obj has
// no model. A missing file is ErrUnresolvedReference.
func (r Resolver) Resolve(obj *Object) (string, error) {
	if !obj.HasModel() {
		return "", nil
	}
	base := r.Base(obj)
	for _, ext := range ModelExtensions {
		p := base + ext
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("gseb: %s{%s}: %w", base, strings.Join(ModelExtensions, ","), ErrUnresolvedReference)
}
