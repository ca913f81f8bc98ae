package corpus

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	evalerrors "github.com/ben-gid/traffic-eval/internal/errors"
	"github.com/ben-gid/traffic-eval/internal/labels"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"
	_ "github.com/spakin/netpbm"
	"golang.org/x/sync/errgroup"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".ppm":  {},
	".pgm":  {},
	".pnm":  {},
}

type Options struct {
	Root string
	// TargetSize resizes every image to TargetSize x TargetSize. Zero keeps
	// the native size.
	TargetSize int
	// Workers bounds concurrent decoding. Values below 1 mean 1.
	Workers int
}

type decoded struct {
	img     *image.RGBA
	corrupt bool
}

type job struct {
	path  string
	label string
}

// Load reads the class-per-directory tree under opts.Root. Any I/O failure
// aborts the whole load; files that read fine but do not decode are skipped
// and listed in Corpus.Corrupt.
func Load(ctx context.Context, opts Options) (*Corpus, error) {
	root := opts.Root
	info, err := os.Stat(root)
	if err != nil {
		return nil, &evalerrors.CorpusError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &evalerrors.CorpusError{Path: root, Err: fmt.Errorf("not a directory")}
	}

	classDirs, err := listClasses(root)
	if err != nil {
		return nil, &evalerrors.CorpusError{Path: root, Err: err}
	}
	if len(classDirs) == 0 {
		return nil, &evalerrors.CorpusError{Path: root, Err: fmt.Errorf("no class subdirectories")}
	}
	space, err := labels.NewSpace(classDirs)
	if err != nil {
		return nil, &evalerrors.CorpusError{Path: root, Err: err}
	}

	var jobs []job
	for _, class := range space.Names() {
		files, err := listImages(filepath.Join(root, class))
		if err != nil {
			return nil, &evalerrors.CorpusError{Path: root, Err: err}
		}
		for _, f := range files {
			jobs = append(jobs, job{path: f, label: class})
		}
	}
	if len(jobs) == 0 {
		return nil, &evalerrors.CorpusError{Path: root, Err: fmt.Errorf("no image files under %d classes", space.Len())}
	}

	results := make([]decoded, len(jobs))
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range jobs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, corrupt, err := decodeFile(jobs[i].path, opts.TargetSize)
			if err != nil {
				return err
			}
			results[i] = decoded{img: img, corrupt: corrupt}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &evalerrors.CorpusError{Path: root, Err: err}
	}

	c := &Corpus{Root: root, Classes: space}
	for i, r := range results {
		if r.corrupt {
			c.Corrupt = append(c.Corrupt, jobs[i].path)
			log.Debug().Str("path", jobs[i].path).Msg("skipping corrupt image")
			continue
		}
		c.Samples = append(c.Samples, Sample{Path: jobs[i].path, Label: jobs[i].label, Image: r.img})
	}
	if len(c.Samples) == 0 {
		return nil, &evalerrors.CorpusError{Path: root, Err: fmt.Errorf("all %d image files are corrupt", len(jobs))}
	}

	log.Info().
		Str("root", root).
		Int("classes", space.Len()).
		Int("samples", len(c.Samples)).
		Int("skipped", c.Skipped()).
		Msg("corpus loaded")
	return c, nil
}

func listClasses(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var classes []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			classes = append(classes, e.Name())
		}
	}
	return classes, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files, nil
}

// decodeFile returns corrupt=true for data that is not a decodable image. A
// read failure is returned as an error.
func decodeFile(path string, size int) (*image.RGBA, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, true, nil
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, true, nil
	}
	if size > 0 {
		img = resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	}
	return toRGBA(img), false, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
