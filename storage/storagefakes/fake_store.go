package storagefakes

import (
	"context"
	"io"
	"sort"
	"sync"

	alerrors "github.com/onepointalo/alo/internal/errors"
	"github.com/onepointalo/alo/storage"
)

var (
	_ storage.ContainerStore = (*FakeStore)(nil)
	_ storage.ObjectStore    = (*FakeStore)(nil)
)

type Object struct {
	Data        []byte
	ContentType string
}

// FakeStore is an in-memory object store.
type FakeStore struct {
	containers map[string]storage.ContainerSpec
	objects    map[string]Object // container/key to object
	creates    int
	lock       sync.RWMutex

	// ListHook replaces ListContainers when set.
	ListHook func(ctx context.Context) ([]string, error)
	// CreateErrs fails creation of the named containers.
	CreateErrs map[string]error
}

func NewFakeStore(existing ...string) *FakeStore {
	f := &FakeStore{
		containers: make(map[string]storage.ContainerSpec),
		objects:    make(map[string]Object),
		CreateErrs: make(map[string]error),
	}
	for _, name := range existing {
		f.containers[name] = storage.ContainerSpec{Name: name}
	}
	return f
}

func (f *FakeStore) ListContainers(ctx context.Context) ([]string, error) {
	if f.ListHook != nil {
		return f.ListHook(ctx)
	}

	f.lock.RLock()
	defer f.lock.RUnlock()

	names := make([]string, 0, len(f.containers))
	for name := range f.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeStore) CreateContainer(_ context.Context, spec storage.ContainerSpec) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if err := f.CreateErrs[spec.Name]; err != nil {
		return err
	}
	f.containers[spec.Name] = spec
	f.creates++
	return nil
}

func (f *FakeStore) PutObject(_ context.Context, container, key string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	if _, ok := f.containers[container]; !ok {
		return alerrors.Wrapf(alerrors.ErrNotFound, "container %s", container)
	}
	f.objects[container+"/"+key] = Object{Data: data, ContentType: contentType}
	return nil
}

func (f *FakeStore) PublicURL(container, key string) string {
	return "https://storage.test/" + container + "/" + key
}

// Container returns the ContainerSpec a container was created with.
func (f *FakeStore) Container(name string) (storage.ContainerSpec, bool) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	spec, ok := f.containers[name]
	return spec, ok
}

func (f *FakeStore) Object(container, key string) (Object, bool) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	obj, ok := f.objects[container+"/"+key]
	return obj, ok
}

func (f *FakeStore) ObjectCount() int {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return len(f.objects)
}

// Creates counts successful CreateContainer calls.
func (f *FakeStore) Creates() int {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.creates
}
