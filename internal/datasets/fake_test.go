package datasets

import (
	"context"
	"sync"
)

type fakeRegistry struct {
	mu       sync.Mutex
	versions map[string][]Version
	uploads  []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{versions: map[string][]Version{}}
}

func (f *fakeRegistry) Latest(_ context.Context, name string) (Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	versions := f.versions[name]
	if len(versions) == 0 {
		return Version{}, ErrNotFound
	}
	return versions[len(versions)-1], nil
}

func (f *fakeRegistry) Get(_ context.Context, name, version string) (Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.versions[name] {
		if v.Version == version {
			return v, nil
		}
	}
	return Version{}, ErrNotFound
}

func (f *fakeRegistry) Upload(_ context.Context, v Version, path string) (Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v.Object = v.Name + "/" + v.Version + "/" + path
	f.versions[v.Name] = append(f.versions[v.Name], v)
	f.uploads = append(f.uploads, v.Name+":"+v.Version)
	return v, nil
}
