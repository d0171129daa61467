package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the PhysioNet location of the EEG Motor Movement/Imagery dataset.
const DefaultBaseURL = "https://physionet.org/files/eegmmidb/1.0.0/"

const (
	maxSubject = 109
	maxRun     = 14
)

// MotorImageryAnnotations renames the EEGBCI event markers to their meaning.
var MotorImageryAnnotations = map[string]string{"T1": "hands", "T2": "feet"}

// FetchOptions configures Fetch. Path is required.
type FetchOptions struct {
	Path     string
	Subjects []int
	Runs     []int
	BaseURL  string
	// Workers bounds concurrent downloads. Zero means one at a time.
	Workers int
	Client  *http.Client
	Logger  *zap.Logger
}

// DatasetDir returns the directory under root that holds the EEGBCI files.
func DatasetDir(root string) string {
	return filepath.Join(root, "MNE-eegbci-data", "files", "eegmmidb", "1.0.0")
}

// RecordingPath returns where the file for subject and run is stored under root.
func RecordingPath(root string, subject, run int) string {
	return filepath.Join(DatasetDir(root), fmt.Sprintf("S%03d", subject), fmt.Sprintf("S%03dR%02d.edf", subject, run))
}

// CachedRecording is an EEGBCI file already stored under a data path.
type CachedRecording struct {
	Subject int
	Run     int
	Path    string
}

// Cached lists the recordings stored under root, ordered by subject then run.
// Files outside their RecordingPath location are ignored, and a root without
// a dataset directory holds no recordings.
func Cached(root string) ([]CachedRecording, error) {
	dir := DatasetDir(root)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	paths, err := DiscoverRecordings(dir)
	if err != nil {
		return nil, err
	}
	var out []CachedRecording
	for _, path := range paths {
		subject, run, ok := ParseRecordingName(path)
		if !ok || path != RecordingPath(root, subject, run) {
			continue
		}
		out = append(out, CachedRecording{Subject: subject, Run: run, Path: path})
	}
	return out, nil
}

func recordingURL(base string, subject, run int) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("base url: %w", err)
	}
	return u.JoinPath(fmt.Sprintf("S%03d", subject), fmt.Sprintf("S%03dR%02d.edf", subject, run)).String(), nil
}

// Fetch makes sure every subject/run file exists under opts.Path, downloading
// missing ones. Paths are returned subject by subject in run order.
func Fetch(ctx context.Context, opts FetchOptions) ([]string, error) {
	if opts.Path == "" {
		return nil, errors.New("fetch: data path is required")
	}
	if len(opts.Subjects) == 0 || len(opts.Runs) == 0 {
		return nil, errors.New("fetch: at least one subject and one run are required")
	}
	for _, s := range opts.Subjects {
		if s < 1 || s > maxSubject {
			return nil, fmt.Errorf("fetch: subject %d outside [1, %d]", s, maxSubject)
		}
	}
	for _, r := range opts.Runs {
		if r < 1 || r > maxRun {
			return nil, fmt.Errorf("fetch: run %d outside [1, %d]", r, maxRun)
		}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cached, err := Cached(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	have := make(map[string]bool, len(cached))
	for _, c := range cached {
		have[c.Path] = true
	}

	paths := make([]string, 0, len(opts.Subjects)*len(opts.Runs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, subject := range opts.Subjects {
		for _, run := range opts.Runs {
			path := RecordingPath(opts.Path, subject, run)
			paths = append(paths, path)
			if have[path] {
				logger.Debug("recording cached", zap.String("path", path))
				continue
			}
			target, err := recordingURL(opts.BaseURL, subject, run)
			if err != nil {
				return nil, fmt.Errorf("fetch: %w", err)
			}
			g.Go(func() error {
				if err := download(gctx, opts.Client, target, path); err != nil {
					return fmt.Errorf("fetch subject %d run %d: %w", subject, run, err)
				}
				logger.Info("recording downloaded", zap.Int("subject", subject), zap.Int("run", run), zap.String("path", path))
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func download(ctx context.Context, client *http.Client, target, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", target, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadOptions configures LoadRecording.
type LoadOptions struct {
	FetchOptions
	// Montage names the electrode template; empty means "standard_1005".
	Montage string
}

// LoadRecording fetches the requested runs, concatenates them, renames the
// T1/T2 markers to "hands"/"feet", standardizes channel names and applies the
// electrode template.
func LoadRecording(ctx context.Context, opts LoadOptions) (*Raw, error) {
	paths, err := Fetch(ctx, opts.FetchOptions)
	if err != nil {
		return nil, err
	}
	raws, err := ReadRecordings(ctx, paths, opts.Workers)
	if err != nil {
		return nil, err
	}
	raw, err := Concatenate(raws...)
	if err != nil {
		return nil, err
	}
	raw.RenameAnnotations(MotorImageryAnnotations)
	raw.StandardizeChannelNames()

	name := opts.Montage
	if name == "" {
		name = "standard_1005"
	}
	montage, err := StandardMontage(name)
	if err != nil {
		return nil, err
	}
	raw.SetMontage(montage)
	return raw, nil
}

// ReadEDFFile opens and decodes one EDF file.
func ReadEDFFile(path string) (*Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw, err := ReadEDF(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raw, nil
}

// WriteEDFFile encodes raw into path.
func WriteEDFFile(path string, raw *Raw) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteEDF(f, raw); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
