package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/usu/engine/assets/loaders"
	"github.com/spaghettifunk/usu/engine/core"
	"github.com/spaghettifunk/usu/engine/renderer/metadata"
)

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrNoLoader      = errors.New("no loader registered for resource type")
	ErrClosed        = errors.New("asset manager closed")
)

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

// AssetManager resolves asset paths, dispatches to the loader for each
// resource type and reports changes to watched files on Changes.
type AssetManager struct {
	roots   []string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader
	watched map[string]bool

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan string
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		roots:    searchRoots(),
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		watched:  make(map[string]bool),
		fsnotify: fsWatch,
		changes:  make(chan string, 16),
		done:     make(chan struct{}),
	}

	am.RegisterLoader(metadata.ResourceTypeMesh, &loaders.OBJLoader{})
	am.RegisterLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.RegisterLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})

	am.wg.Add(1)
	go am.start()
	return am, nil
}

// searchRoots lists the executable directory and two of its parents, so
// a binary under bin/ or build/<cfg>/ still finds the repository assets,
// then the working directory.
func searchRoots() []string {
	var roots []string
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		roots = append(roots, dir, filepath.Join(dir, ".."), filepath.Join(dir, "..", ".."))
	}
	if wd, err := os.Getwd(); err == nil {
		roots = append(roots, wd)
	}
	return roots
}

// ResolvePath returns the first existing file for rel under the search
// roots. Absolute paths are only checked for existence.
func (am *AssetManager) ResolvePath(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		if _, err := os.Stat(rel); err != nil {
			return "", fmt.Errorf("%s: %w", rel, ErrAssetNotFound)
		}
		return rel, nil
	}
	for _, root := range am.roots {
		candidate := filepath.Clean(filepath.Join(root, rel))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w", rel, ErrAssetNotFound)
}

func (am *AssetManager) RegisterLoader(assetType metadata.ResourceType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

// LoadAsset resolves filename and hands it to the loader for resourceType.
func (am *AssetManager) LoadAsset(filename string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	path, err := am.ResolvePath(filename)
	if err != nil {
		return nil, err
	}

	am.mutex.RLock()
	loader, loaderExists := am.loaders[resourceType]
	am.mutex.RUnlock()
	if !loaderExists {
		return nil, fmt.Errorf("%s: %w", resourceType, ErrNoLoader)
	}

	resource, err := loader.Load(path, params)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.assets[path] = AssetInfo{Path: path, Type: resourceType, LastLoaded: time.Now()}
	am.mutex.Unlock()
	return resource, nil
}

func (am *AssetManager) UnloadAsset(resource *metadata.Resource) error {
	if resource == nil {
		return nil
	}
	am.mutex.Lock()
	delete(am.assets, resource.FullPath)
	loader, ok := am.loaders[resource.Type]
	am.mutex.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", resource.Type, ErrNoLoader)
	}
	return loader.Unload(resource)
}

// Loaded returns what is known about a previously loaded path.
func (am *AssetManager) Loaded(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[path]
	return info, ok
}

// Watch reports writes to the file at rel on Changes. The parent directory
// is watched so editors that save by rename are still seen.
func (am *AssetManager) Watch(rel string) (string, error) {
	path, err := am.ResolvePath(rel)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	if am.isClosed {
		return "", ErrClosed
	}
	if err := am.fsnotify.Add(filepath.Dir(abs)); err != nil {
		return "", fmt.Errorf("watch %s: %w", abs, err)
	}
	am.watched[abs] = true
	core.LogDebug("Watching '%s' for changes.", abs)
	return abs, nil
}

// Changes delivers the absolute path of a watched file after each write.
// Notifications are dropped while the channel is full.
func (am *AssetManager) Changes() <-chan string {
	return am.changes
}

func (am *AssetManager) Close() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {

		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			am.handleFileEvent(e.Name)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			am.fsnotify.Close()
			close(am.changes)
			return
		}
	}
}

func (am *AssetManager) handleFileEvent(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}
	am.mutex.RLock()
	watched := am.watched[abs]
	am.mutex.RUnlock()
	if !watched {
		return
	}
	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		return
	}
	select {
	case am.changes <- abs:
	default:
		// consumer is behind; it will reload the latest contents anyway
	}
}

// DetermineAssetType maps a file extension to the loader that reads it.
func DetermineAssetType(path string) (metadata.ResourceType, bool) {
	switch filepath.Ext(path) {
	case ".wgsl":
		return metadata.ResourceTypeShader, true
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return metadata.ResourceTypeImage, true
	case ".obj":
		return metadata.ResourceTypeMesh, true
	default:
		return metadata.ResourceTypeText, false
	}
}
