package capture

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/foodlens/internal/barcode"
	"github.com/yungbote/foodlens/internal/platform/logger"
)

var frameExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// DirDevice replays the images in a directory as camera frames, in name
// order, at a fixed rate.
type DirDevice struct {
	log      *logger.Logger
	dir      string
	interval time.Duration
	loop     bool

	mu     sync.Mutex
	frames chan image.Image
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewDirDevice(log *logger.Logger, dir string, framesPerSecond float64, loop bool) *DirDevice {
	var interval time.Duration
	if framesPerSecond > 0 {
		interval = time.Duration(float64(time.Second) / framesPerSecond)
	}
	return &DirDevice{
		log:      logger.OrNop(log).With("device", "dir", "dir", dir),
		dir:      dir,
		interval: interval,
		loop:     loop,
	}
}

func (d *DirDevice) Open(ctx context.Context) error {
	files, err := d.list()
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return ErrDeviceBusy
	}
	d.frames = make(chan image.Image)
	d.stop = make(chan struct{})
	d.wg.Add(1)
	go d.replay(files, d.frames, d.stop)
	return nil
}

func (d *DirDevice) Frames() <-chan image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

func (d *DirDevice) Close() error {
	d.mu.Lock()
	stop := d.stop
	d.stop = nil
	d.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	d.wg.Wait()
	return nil
}

func (d *DirDevice) list() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return nil, errors.Join(ErrPermissionDenied, err)
	case err != nil:
		return nil, errors.Join(ErrNoDevice, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(d.dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, ErrNoDevice
	}
	sort.Strings(files)
	return files, nil
}

func (d *DirDevice) replay(files []string, out chan<- image.Image, stop <-chan struct{}) {
	defer d.wg.Done()
	defer close(out)

	var tick <-chan time.Time
	if d.interval > 0 {
		t := time.NewTicker(d.interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		sent := 0
		for _, path := range files {
			raw, err := os.ReadFile(path)
			if err != nil {
				d.log.Warn("frame unreadable", "path", path, "error", err)
				continue
			}
			img, _, err := barcode.DecodeImage(raw)
			if err != nil {
				d.log.Warn("frame undecodable", "path", path, "error", err)
				continue
			}
			select {
			case out <- img:
				sent++
			case <-stop:
				return
			}
			if tick != nil {
				select {
				case <-tick:
				case <-stop:
					return
				}
			}
		}
		if !d.loop || sent == 0 {
			return
		}
	}
}
