package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/coder/hnsw"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

// vectorFileVersion is bumped on incompatible changes to vectorFile.
const vectorFileVersion = 1

// vectorFile is the gob-encoded arena. Tombstones are an empty id with a
// nil vector, so slot numbers survive a round trip.
type vectorFile struct {
	Version   int
	Dimension int
	Backend   string
	IDs       []string
	Vectors   [][]float32
}

// Save writes the arena to path and, for the HNSW backend, the native
// graph to path+".hnsw". Each file is written to a temp file and renamed.
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return ragerrors.InternalError("vector index is closed", nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return ragerrors.StorageError("failed to create index directory", err)
	}

	file := vectorFile{
		Version:   vectorFileVersion,
		Dimension: v.config.Dimensions,
		Backend:   v.backend.name(),
		IDs:       v.ids,
		Vectors:   v.vectors,
	}
	err := writeAtomic(path, func(f *os.File) error {
		return gob.NewEncoder(f).Encode(&file)
	})
	if err != nil {
		return ragerrors.StorageError("failed to save vector index", err).WithDetail("path", path)
	}

	if hb, ok := v.backend.(*hnswBackend); ok {
		hb.mu.Lock()
		err := writeAtomic(path+hnswSuffix, func(f *os.File) error {
			w := bufio.NewWriter(f)
			if err := hb.graph.Export(w); err != nil {
				return err
			}
			return w.Flush()
		})
		hb.mu.Unlock()
		if err != nil {
			return ragerrors.StorageError("failed to save hnsw graph", err).WithDetail("path", path+hnswSuffix)
		}
	}

	slog.Debug("vector_index_saved",
		slog.String("path", path),
		slog.Int("slots", len(v.ids)),
		slog.Int("tombstones", v.dead))
	return nil
}

// writeAtomic writes through a temp file in the target directory and
// renames it into place.
func writeAtomic(path string, write func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Load replaces the index contents with the arena saved at path. Nothing
// changes unless the whole load succeeds. A missing or unreadable native
// graph file is rebuilt from the stored vectors.
func (v *VectorIndex) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return ragerrors.StorageError("failed to open vector index", err).WithDetail("path", path)
	}
	var file vectorFile
	decodeErr := gob.NewDecoder(bufio.NewReader(f)).Decode(&file)
	_ = f.Close()
	if decodeErr != nil {
		return ragerrors.New(ragerrors.ErrCodeCorruptIndex, "vector index file is corrupt", decodeErr).
			WithDetail("path", path)
	}

	if file.Version != vectorFileVersion {
		return ragerrors.New(ragerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("unsupported vector index version %d", file.Version), nil)
	}
	if file.Dimension != v.config.Dimensions {
		return ragerrors.DimensionError(v.config.Dimensions, file.Dimension).
			WithSuggestion("The store was built with a different embedding model; use a new storage path")
	}
	if len(file.IDs) != len(file.Vectors) {
		return ragerrors.New(ragerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("vector index has %d ids but %d vectors", len(file.IDs), len(file.Vectors)), nil)
	}

	slotOf := make(map[string]uint64, len(file.IDs))
	dead := 0
	for slot, id := range file.IDs {
		if id == "" {
			file.Vectors[slot] = nil
			dead++
			continue
		}
		if len(file.Vectors[slot]) != file.Dimension {
			return ragerrors.New(ragerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("slot %d has dimension %d", slot, len(file.Vectors[slot])), nil)
		}
		if _, dup := slotOf[id]; dup {
			return ragerrors.New(ragerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("id %s occupies two live slots", id), nil)
		}
		slotOf[id] = uint64(slot)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ragerrors.InternalError("vector index is closed", nil)
	}

	backend, err := v.loadBackend(path, file)
	if err != nil {
		return err
	}
	v.backend, v.ids, v.vectors, v.slotOf, v.dead = backend, file.IDs, file.Vectors, slotOf, dead

	slog.Debug("vector_index_loaded",
		slog.String("path", path),
		slog.String("backend", backend.name()),
		slog.Int("live", len(slotOf)),
		slog.Int("tombstones", dead))
	return nil
}

// loadBackend imports the native graph when it matches the arena and
// otherwise rebuilds the backend from live vectors.
func (v *VectorIndex) loadBackend(path string, file vectorFile) (annBackend, error) {
	backend, err := newBackend(v.config)
	if err != nil {
		return nil, err
	}

	hb, ok := backend.(*hnswBackend)
	if ok && file.Backend == BackendHNSW {
		if graph, err := importGraph(path+hnswSuffix, v.config); err == nil && graphCoversArena(graph, file.IDs) {
			hb.graph = graph
			hb.slots = len(file.IDs)
			return hb, nil
		} else if err != nil && !os.IsNotExist(err) {
			slog.Warn("hnsw_graph_unreadable",
				slog.String("path", path+hnswSuffix),
				slog.String("error", err.Error()))
		}
	}

	for slot, vec := range file.Vectors {
		if file.IDs[slot] != "" {
			backend.add(uint64(slot), vec)
		}
	}
	if ok {
		slog.Info("hnsw_graph_rebuilt", slog.Int("nodes", backend.len()))
	}
	return backend, nil
}

// graphCoversArena reports whether graph holds a node for every live slot
// and nothing beyond the arena. Tombstoned slots may or may not be present:
// a graph rebuilt after deletions only contains the slots live at the time.
func graphCoversArena(graph *hnsw.Graph[uint64], ids []string) bool {
	if graph.Len() > len(ids) {
		return false
	}
	for slot, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := graph.Lookup(uint64(slot)); !ok {
			return false
		}
	}
	return true
}

func importGraph(path string, cfg VectorConfig) (graph *hnsw.Graph[uint64], err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hnsw import panicked: %v", r)
		}
	}()

	graph = newHNSWGraph(cfg)
	if err := graph.Import(bufio.NewReader(f)); err != nil {
		return nil, err
	}
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	return graph, nil
}

// VectorFileExists reports whether a saved arena exists at path.
func VectorFileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
