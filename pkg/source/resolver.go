package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nais/botdeploy/pkg/logging"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxArchiveSize = 50 * 1024 * 1024
	DefaultTimeout        = 60 * time.Second
)

var ErrUnreachable = errors.New("source archive is not reachable")

type Config struct {
	Ref    string
	Format string
	// Sent as a bearer token to GitHub hosts only.
	Token          string
	Policy         RolePolicy
	MaxArchiveSize int64
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// RoleSelection is the outcome of role detection for one archive.
type RoleSelection struct {
	Role     string
	Declared []string
	// False when the role is the fallback because no Procfile could be read.
	FromProcfile bool
}

type Resolver struct {
	cfg    Config
	client *http.Client
}

func NewResolver(cfg Config) *Resolver {
	if len(cfg.Ref) == 0 {
		cfg.Ref = DefaultRef
	}
	if cfg.Format != FormatZipball {
		cfg.Format = DefaultFormat
	}
	if cfg.MaxArchiveSize <= 0 {
		cfg.MaxArchiveSize = DefaultMaxArchiveSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Policy = cfg.Policy.withDefaults()
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Resolver{
		cfg:    cfg,
		client: client,
	}
}

func (r *Resolver) Policy() RolePolicy {
	return r.cfg.Policy
}

// ArchiveURL turns a repository reference into a downloadable archive URL.
// Direct archive URLs are returned as is. The result only depends on the input and configuration.
func (r *Resolver) ArchiveURL(repoRef string) (string, error) {
	ref := NormalizeReference(repoRef)
	if isArchiveURL(ref) {
		return ref, nil
	}
	repo, err := ParseRepository(ref, r.cfg.Ref)
	if err != nil {
		return "", err
	}
	return repo.ArchiveURL(r.cfg.Format), nil
}

func isGitHubHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == githubHost || strings.HasSuffix(host, "."+githubHost)
}

func isZipContentType(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.TrimSpace(mediaType)
	return mediaType == "application/zip" || mediaType == "application/x-zip-compressed"
}

func (r *Resolver) newRequest(ctx context.Context, method, archiveURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, archiveURL, nil)
	if err != nil {
		return nil, err
	}
	if len(r.cfg.Token) > 0 && isGitHubHost(archiveURL) {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}
	return req, nil
}

// Probe checks that the archive can be fetched, without downloading it.
func (r *Resolver) Probe(ctx context.Context, archiveURL string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := r.newRequest(ctx, http.MethodHead, archiveURL)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreachable, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		return fmt.Errorf("%w: %s returned %s", ErrUnreachable, archiveURL, resp.Status)
	}

	return nil
}

// DetectRole downloads the archive and selects a role from its Procfile.
// It never fails; any problem yields the policy's default role.
func (r *Resolver) DetectRole(ctx context.Context, archiveURL string) RoleSelection {
	logger := log.WithField(logging.FieldRepository, archiveURL)

	declared, err := r.declaredRoles(ctx, archiveURL)
	if err != nil {
		role := r.cfg.Policy.Default
		logger.Infof("Falling back to role '%s': %s", role, err)
		return RoleSelection{
			Role:     role,
			Declared: []string{},
		}
	}

	role := r.cfg.Policy.Select(declared)
	logger.WithField(logging.FieldRole, role).Debugf("Procfile declares %v", declared)

	return RoleSelection{
		Role:         role,
		Declared:     declared,
		FromProcfile: true,
	}
}

func (r *Resolver) declaredRoles(ctx context.Context, archiveURL string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := r.newRequest(ctx, http.MethodGet, archiveURL)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download archive: %s", resp.Status)
	}

	body := io.LimitReader(resp.Body, r.cfg.MaxArchiveSize)

	var procfile []byte
	if isZipURL(archiveURL) || isZipContentType(resp.Header.Get("Content-Type")) {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("download archive: %w", err)
		}
		procfile, err = procfileFromZipball(data)
		if err != nil {
			return nil, err
		}
	} else {
		procfile, err = procfileFromTarball(body)
		if err != nil {
			return nil, err
		}
	}

	return ParseProcfile(bytes.NewReader(procfile))
}
