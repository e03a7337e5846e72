package collector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/ghalamif/TrendImport/internal/adapters/observability"
	"github.com/ghalamif/TrendImport/internal/adapters/textimport"
	"github.com/ghalamif/TrendImport/internal/domain"
	"github.com/ghalamif/TrendImport/internal/ports"
)

const defaultSettle = 500 * time.Millisecond

// Config selects the files a FileCollector imports.
type Config struct {
	// Files are doublestar glob patterns, e.g. "data/**/*.csv".
	Files []string
	// WatchDir, if set, is watched for new or rewritten files after the
	// initial import. The collector then runs until Stop.
	WatchDir string
	// Settle is how long a watched file must stay quiet before it is
	// imported. Defaults to 500ms.
	Settle time.Duration
}

// FileCollector imports text files with the sample importer and feeds the
// resulting samples into the pipeline, file by file, in line order.
type FileCollector struct {
	cfg      Config
	importer *textimport.Importer
	obs      ports.Observability

	watcher  *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu      sync.Mutex
	pending map[string]*time.Timer
	queued  chan string
}

func NewFileCollector(cfg Config, opts textimport.Options, obs ports.Observability) (*FileCollector, error) {
	if len(cfg.Files) == 0 && cfg.WatchDir == "" {
		return nil, errors.New("collector: no files or watch directory configured")
	}
	for _, p := range cfg.Files {
		if !doublestar.ValidatePathPattern(p) {
			return nil, fmt.Errorf("collector: invalid file pattern %q", p)
		}
	}
	if cfg.Settle <= 0 {
		cfg.Settle = defaultSettle
	}
	if opts.Obs == nil {
		opts.Obs = obs
	}
	return &FileCollector{
		cfg:      cfg,
		importer: textimport.New(opts),
		obs:      obs,
		done:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
		queued:   make(chan string, 64),
	}, nil
}

// Start imports every matching file, then keeps importing files dropped into
// WatchDir until Stop. out is closed once the collector has finished.
func (c *FileCollector) Start(out chan<- *domain.Sample) error {
	paths, err := c.expand()
	if err != nil {
		return err
	}

	if c.cfg.WatchDir != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("collector: watcher: %w", err)
		}
		if err := w.Add(c.cfg.WatchDir); err != nil {
			_ = w.Close()
			return fmt.Errorf("collector: watch %s: %w", c.cfg.WatchDir, err)
		}
		c.watcher = w
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)

		for _, p := range paths {
			if !c.emitFile(p, out) {
				return
			}
		}
		if c.watcher != nil {
			c.watchLoop(out)
		}
	}()
	return nil
}

func (c *FileCollector) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.done)
		if c.watcher != nil {
			err = c.watcher.Close()
		}
		c.mu.Lock()
		for _, t := range c.pending {
			t.Stop()
		}
		c.mu.Unlock()
	})
	c.wg.Wait()
	return err
}

// ImportFile runs the importer over one file and stamps provenance on every
// sample. A read error discards the whole file.
func (c *FileCollector) ImportFile(path string) ([]*domain.Sample, textimport.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, textimport.Report{}, err
	}
	defer f.Close()

	samples, rep, err := c.importer.ImportWithReport(f)
	if err != nil {
		return nil, rep, fmt.Errorf("import %s: %w", path, err)
	}

	importID := uuid.NewString()
	for _, s := range samples {
		s.Source = path
		s.ImportID = importID
	}
	return samples, rep, nil
}

// emitFile reports false when the collector was stopped mid-file.
func (c *FileCollector) emitFile(path string, out chan<- *domain.Sample) bool {
	samples, rep, err := c.ImportFile(path)

	c.obs.IncCounter(observability.LinesTotal, float64(rep.Lines))
	c.obs.IncCounter(observability.LinesIgnored, float64(rep.Ignored))
	c.obs.IncCounter(observability.LinesInvalid, float64(rep.Invalid))
	if err != nil {
		c.obs.IncCounter(observability.FilesFailed, 1)
		c.obs.LogError("import_file_failed", err, ports.Field{Key: "file", Value: path})
		return true
	}
	c.obs.IncCounter(observability.FilesImported, 1)
	c.obs.IncCounter(observability.SamplesImported, float64(rep.Samples))
	c.obs.LogInfo("import_file_complete",
		ports.Field{Key: "file", Value: path},
		ports.Field{Key: "samples", Value: rep.Samples},
		ports.Field{Key: "ignored", Value: rep.Ignored},
		ports.Field{Key: "invalid", Value: rep.Invalid})

	for _, s := range samples {
		select {
		case out <- s:
		case <-c.done:
			return false
		}
	}
	return true
}

func (c *FileCollector) watchLoop(out chan<- *domain.Sample) {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && watchable(ev.Name) {
				c.schedule(ev.Name)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.obs.LogError("watch_error", err, ports.Field{Key: "dir", Value: c.cfg.WatchDir})
		case path := <-c.queued:
			if !c.emitFile(path, out) {
				return
			}
		}
	}
}

// schedule (re)arms the settle timer for path; writers usually produce a
// burst of events per file.
func (c *FileCollector) schedule(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.pending[path]; ok {
		t.Reset(c.cfg.Settle)
		return
	}
	c.pending[path] = time.AfterFunc(c.cfg.Settle, func() {
		c.mu.Lock()
		delete(c.pending, path)
		c.mu.Unlock()

		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return
		}
		select {
		case c.queued <- path:
		case <-c.done:
		}
	})
}

// expand resolves the glob patterns into a sorted, de-duplicated file list.
func (c *FileCollector) expand() ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	for _, pattern := range c.cfg.Files {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("collector: glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			c.obs.LogInfo("pattern_matched_nothing", ports.Field{Key: "pattern", Value: pattern})
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func watchable(path string) bool {
	return !strings.HasPrefix(filepath.Base(path), ".")
}

var _ ports.Collector = (*FileCollector)(nil)
