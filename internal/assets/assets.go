// Package assets holds the models, motions and cameras a session imports.
package assets

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/headless-mmd/internal/config"
	"github.com/Faultbox/headless-mmd/internal/logger"
	"github.com/Faultbox/headless-mmd/pkg/anim"
	"github.com/Faultbox/headless-mmd/pkg/encoding"
	"github.com/Faultbox/headless-mmd/pkg/formats"
)

// ID identifies an imported asset. IDs are unique across asset kinds.
type ID uint64

// NullID is never assigned to an asset.
const NullID ID = 0

// Asset lookup errors.
var (
	ErrNotFound     = errors.New("asset not found")
	ErrUnknownModel = errors.New("unknown model id")
)

// Options configure a Library.
type Options struct {
	// SearchPaths are tried in order for relative paths that do not exist
	// as given.
	SearchPaths []string
	// RawNames disables Shift-JIS conversion of motion and capture names.
	RawNames bool
	Import   anim.Options
}

// OptionsFromConfig builds library options from a validated config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SearchPaths: slices.Clone(cfg.Data.SearchPaths),
		RawNames:    cfg.Import.NameEncoding == config.NameEncodingRaw,
		Import:      cfg.ImportOptions(),
	}
}

// Model is an imported PMX model with the bone and morph lists animations
// bind to.
type Model struct {
	Path       string
	PMX        *formats.Model
	Skeleton   *anim.Skeleton
	MorphNames []string
}

// Library owns imported assets. It is safe for concurrent use: imports
// parse outside the lock and only take it to publish the result.
type Library struct {
	opts  Options
	log   *zap.Logger
	cache *Cache

	mu         sync.RWMutex
	nextID     ID
	models     map[ID]*Model
	animations map[ID]*anim.Animation
	cameras    map[ID]*anim.CameraAnimation
}

// NewLibrary creates an empty library. A nil log uses the global logger.
func NewLibrary(opts Options, log *zap.Logger) *Library {
	if log == nil {
		log = logger.Log
	}
	return &Library{
		opts:       opts,
		log:        log.Named("assets"),
		cache:      NewCache(),
		models:     make(map[ID]*Model),
		animations: make(map[ID]*anim.Animation),
		cameras:    make(map[ID]*anim.CameraAnimation),
	}
}

// ImportModel loads a PMX model.
func (l *Library) ImportModel(path string) (ID, error) {
	data, resolved, err := l.read(path)
	if err != nil {
		return NullID, err
	}
	pmx, err := formats.LoadModel(data)
	if err != nil {
		return NullID, fmt.Errorf("importing model %s: %w", resolved, err)
	}

	m := &Model{
		Path:       resolved,
		PMX:        pmx,
		Skeleton:   anim.SkeletonFromModel(pmx),
		MorphNames: anim.MorphNamesFromModel(pmx),
	}

	l.mu.Lock()
	id := l.newID()
	l.models[id] = m
	l.mu.Unlock()

	l.log.Info("imported model",
		zap.Uint64("id", uint64(id)),
		zap.String("path", resolved),
		zap.String("name", pmx.Header.Name),
		zap.Int("bones", len(pmx.Bones)),
		zap.Int("morphs", len(m.MorphNames)))
	return id, nil
}

// ImportMotion loads a VMD motion. The bone and morph tracks are bound to
// the given model unless model is NullID; the camera track is imported
// when the motion has camera keys. Either returned ID may be NullID.
func (l *Library) ImportMotion(path string, model ID) (animID, cameraID ID, err error) {
	target, err := l.targetModel(model)
	if err != nil {
		return NullID, NullID, err
	}
	data, resolved, err := l.read(path)
	if err != nil {
		return NullID, NullID, err
	}
	motion, err := formats.LoadMotion(data)
	if err != nil {
		return NullID, NullID, fmt.Errorf("importing motion %s: %w", resolved, err)
	}
	if !l.opts.RawNames {
		motion.ConvertNames(encoding.ShiftJISStringToUTF8)
	}

	var a *anim.Animation
	if target != nil {
		a = anim.ImportMotion(motion, target.Skeleton, target.MorphNames, l.opts.Import)
		l.warnUnmatched(resolved, target, motion.BoneNames(), motion.MorphNames())
	}
	var cam *anim.CameraAnimation
	if len(motion.Cameras) > 0 {
		cam = anim.NewCameraAnimation(motion.Cameras)
	}

	animID, cameraID = l.publish(a, cam)
	l.log.Info("imported motion",
		zap.String("path", resolved),
		zap.Uint64("animation", uint64(animID)),
		zap.Uint64("camera", uint64(cameraID)),
		zap.Int("camera_keys", len(motion.Cameras)))
	return animID, cameraID, nil
}

// ImportScene loads a scene capture. The captured model whose name matches
// the target model is used, falling back to the first captured model.
func (l *Library) ImportScene(path string, model ID) (animID, cameraID ID, err error) {
	target, err := l.targetModel(model)
	if err != nil {
		return NullID, NullID, err
	}
	data, resolved, err := l.read(path)
	if err != nil {
		return NullID, NullID, err
	}
	scene, err := formats.LoadCapture(data)
	if err != nil {
		return NullID, NullID, fmt.Errorf("importing scene %s: %w", resolved, err)
	}
	if !l.opts.RawNames {
		for i := range scene.Models {
			scene.Models[i].ConvertNames(encoding.ShiftJISStringToUTF8)
		}
	}

	var a *anim.Animation
	if target != nil && len(scene.Models) > 0 {
		captured := scene.FindModel(target.PMX.Header.Name)
		if captured == nil {
			captured = &scene.Models[0]
			l.log.Debug("no captured model matches, using the first",
				zap.String("model", target.PMX.Header.Name),
				zap.String("captured", captured.Name))
		}
		a = anim.ImportCapture(captured, target.Skeleton, target.MorphNames, l.opts.Import)
	}
	var cam *anim.CameraAnimation
	if len(scene.Cameras) > 0 {
		cam = anim.NewCameraAnimation(scene.Cameras)
	}

	animID, cameraID = l.publish(a, cam)
	l.log.Info("imported scene",
		zap.String("path", resolved),
		zap.Int("models", len(scene.Models)),
		zap.Uint64("animation", uint64(animID)),
		zap.Uint64("camera", uint64(cameraID)))
	return animID, cameraID, nil
}

// Model returns an imported model, or nil.
func (l *Library) Model(id ID) *Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.models[id]
}

// Animation returns an imported animation, or nil.
func (l *Library) Animation(id ID) *anim.Animation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.animations[id]
}

// Camera returns an imported camera animation, or nil.
func (l *Library) Camera(id ID) *anim.CameraAnimation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cameras[id]
}

// ModelIDs returns the IDs of all imported models in import order.
func (l *Library) ModelIDs() []ID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.models))
}

// CacheStats returns raw file cache statistics.
func (l *Library) CacheStats() (hits, misses int) {
	return l.cache.Stats()
}

// Close drops every asset and the file cache.
func (l *Library) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.models)
	clear(l.animations)
	clear(l.cameras)
	l.cache.Clear()
}

func (l *Library) newID() ID {
	l.nextID++
	return l.nextID
}

func (l *Library) publish(a *anim.Animation, cam *anim.CameraAnimation) (animID, cameraID ID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if a != nil {
		animID = l.newID()
		l.animations[animID] = a
	}
	if cam != nil {
		cameraID = l.newID()
		l.cameras[cameraID] = cam
	}
	return animID, cameraID
}

func (l *Library) targetModel(id ID) (*Model, error) {
	if id == NullID {
		return nil, nil
	}
	m := l.Model(id)
	if m == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownModel, id)
	}
	return m, nil
}

// read returns a file's contents, consulting the cache first.
func (l *Library) read(path string) (data []byte, resolved string, err error) {
	resolved, err = l.resolve(path)
	if err != nil {
		return nil, "", err
	}

	key := filepath.Clean(resolved)
	if data, ok := l.cache.Get(key); ok {
		l.log.Debug("cache hit", zap.String("path", resolved))
		return data, resolved, nil
	}

	data, err = os.ReadFile(resolved)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", resolved, err)
	}
	l.cache.Set(key, data)
	return data, resolved, nil
}

func (l *Library) resolve(path string) (string, error) {
	if _, err := os.Stat(path); err == nil || filepath.IsAbs(path) {
		return path, nil
	}
	for _, dir := range l.opts.SearchPaths {
		candidate := filepath.Join(dir, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched %s)", ErrNotFound, path, strings.Join(l.opts.SearchPaths, ", "))
}

func (l *Library) warnUnmatched(path string, m *Model, bones, morphs []string) {
	var missing []string
	for _, name := range bones {
		if m.Skeleton.Index(name) < 0 {
			missing = append(missing, name)
		}
	}
	for _, name := range morphs {
		if !slices.Contains(m.MorphNames, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		l.log.Debug("motion tracks without a target",
			zap.String("path", path),
			zap.Strings("tracks", missing))
	}
}
