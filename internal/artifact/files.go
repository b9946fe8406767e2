package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/klauspost/pgzip"

	"github.com/KI7MT/ki7mt-kp-forecast/internal/forecast"
)

// Default file names inside a model directory.
const (
	ModelFile  = "model.json.gz"
	ScalerFile = "scaler.json.gz"
)

// Files locates an artifact pair on disk. It is read on every forecast.
type Files struct {
	ModelPath  string
	ScalerPath string
}

// InDir returns the default pair of files under dir.
func InDir(dir string) Files {
	return Files{
		ModelPath:  filepath.Join(dir, ModelFile),
		ScalerPath: filepath.Join(dir, ScalerFile),
	}
}

// LoadArtifacts implements forecast.ArtifactSource.
func (f Files) LoadArtifacts() (forecast.Model, forecast.Scaler, error) {
	m, s, err := Load(f.ModelPath, f.ScalerPath)
	if err != nil {
		return nil, nil, err
	}
	return m, s, nil
}

// Load reads and validates a model and scaler. A missing file is reported
// as forecast.ErrArtifactMissing.
func Load(modelPath, scalerPath string) (*LinearModel, *StandardScaler, error) {
	var m LinearModel
	if err := readJSON(modelPath, &m); err != nil {
		return nil, nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", modelPath, err)
	}

	var s StandardScaler
	if err := readJSON(scalerPath, &s); err != nil {
		return nil, nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", scalerPath, err)
	}

	if m.Features() != s.Features() {
		return nil, nil, fmt.Errorf("model expects %d features, scaler has %d", m.Features(), s.Features())
	}
	return &m, &s, nil
}

// Save writes both files. Each is written to a temp file and renamed.
func Save(f Files, m *LinearModel, s *StandardScaler) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if err := writeJSON(f.ModelPath, m); err != nil {
		return err
	}
	return writeJSON(f.ScalerPath, s)
}

func readJSON(path string, v any) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, forecast.ErrArtifactMissing)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	gz, err := pgzip.NewReaderN(file, 256*1024, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("gzip reader %s: %w", path, err)
	}
	defer gz.Close()

	if err := json.NewDecoder(gz).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	gz := pgzip.NewWriter(file)
	if err := json.NewEncoder(gz).Encode(v); err != nil {
		gz.Close()
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}
