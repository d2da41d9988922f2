package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultProfile is the profile used when a FileSource does not name one.
const DefaultProfile = "default"

type fileProfile struct {
	Name            string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewFileSource reads the named profile from a JSON credentials file.
// The file contents are cached for up to the configured amount of time.
func NewFileSource(log *zap.Logger, fsys fs.FS, path, profile string, cache time.Duration) (*FileSource, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	fp := &FileSource{
		fsys:    fsys,
		path:    path,
		profile: profile,
		log:     log,
		cache:   cache,
	}

	profiles, err := fp.load()
	if err != nil {
		return nil, err
	}

	fp.profiles = profiles
	fp.expires = time.Now().Add(cache)

	return fp, nil
}

// FileSource implements Source by reading from a single JSON file containing a
// list of named credential profiles.
type FileSource struct {
	fsys    fs.FS
	path    string
	profile string
	log     *zap.Logger
	cache   time.Duration

	mx       sync.RWMutex
	expires  time.Time
	profiles map[string]Credentials
}

// load the profile set from the file.
// It does not lock the source.
func (fp *FileSource) load() (map[string]Credentials, error) {
	r, err := fp.fsys.Open(fp.path)
	if err != nil {
		return nil, err
	}

	defer r.Close()

	var entries []fileProfile
	err = json.NewDecoder(r).Decode(&entries)
	if err != nil {
		return nil, err
	}

	var profiles = make(map[string]Credentials, len(entries))
	for i, entry := range entries {
		name := entry.Name
		if name == "" {
			name = DefaultProfile
		}

		_, ok := profiles[name]
		if ok {
			return nil, fmt.Errorf("profile %d (%s): multiple profiles with the same name", i, name)
		}

		profiles[name] = Credentials{
			AccessKeyID:     entry.AccessKeyID,
			SecretAccessKey: entry.SecretAccessKey,
			SessionToken:    entry.SessionToken,
			Source:          "File:" + name,
		}
	}

	return profiles, nil
}

func (fp *FileSource) get() (Credentials, error) {
	creds, ok := fp.profiles[fp.profile]
	if !ok {
		return Credentials{}, fmt.Errorf("profile %q: %w", fp.profile, ErrNoCredentials)
	}
	if !creds.HasKeys() {
		return Credentials{}, fmt.Errorf("profile %q: %w", fp.profile, ErrNoCredentials)
	}

	return creds, nil
}

func (fp *FileSource) Resolve(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	fp.mx.RLock()
	if time.Now().Before(fp.expires) {
		defer fp.mx.RUnlock()
		return fp.get()
	}

	fp.mx.RUnlock()

	fp.mx.Lock()
	defer fp.mx.Unlock()

	if time.Now().Before(fp.expires) {
		return fp.get()
	}

	profiles, err := fp.load()
	if err != nil {
		fp.log.Error("failed to reload credentials file", zap.Error(err))
		return Credentials{}, fmt.Errorf("reload credentials file: %w", err)
	}

	fp.profiles = profiles
	fp.expires = time.Now().Add(fp.cache)

	return fp.get()
}
