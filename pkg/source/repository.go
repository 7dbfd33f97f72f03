package source

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	FormatTarball = "tarball"
	FormatZipball = "zipball"

	DefaultRef    = "HEAD"
	DefaultFormat = FormatTarball

	githubHost = "github.com"
)

var ErrMalformedRepository = errors.New("malformed repository reference")

var repoSegment = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Repository identifies a GitHub repository and the git ref to fetch.
type Repository struct {
	Owner string
	Name  string
	Ref   string
}

func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

func isArchiveURL(ref string) bool {
	lower := strings.ToLower(ref)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	path := lower
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for _, suffix := range []string{".tar.gz", ".tgz", ".zip"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return strings.Contains(path, "/tarball/") || strings.Contains(path, "/zipball/")
}

func isZipURL(ref string) bool {
	lower := strings.ToLower(ref)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return strings.HasSuffix(lower, ".zip") || strings.Contains(lower, "/zipball/")
}

// NormalizeReference removes all whitespace, including whitespace inside the reference.
// Some clients send "https://github.com/ owner/repo".
func NormalizeReference(ref string) string {
	return strings.Join(strings.Fields(ref), "")
}

// ParseRepository accepts owner/repo, github.com/owner/repo and full GitHub URLs,
// optionally ending in .git or /tree/<ref>. defaultRef is used when the reference names no ref.
func ParseRepository(ref, defaultRef string) (*Repository, error) {
	s := NormalizeReference(ref)
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedRepository)
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "https://"):
		s = s[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		s = s[len("http://"):]
	}
	if strings.HasPrefix(strings.ToLower(s), "www.") {
		s = s[len("www."):]
	}

	parts := strings.Split(strings.Trim(s, "/"), "/")
	if strings.EqualFold(parts[0], githubHost) {
		parts = parts[1:]
	} else if strings.Contains(parts[0], ".") || strings.Contains(parts[0], ":") {
		return nil, fmt.Errorf("%w: unsupported host '%s'", ErrMalformedRepository, parts[0])
	}

	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: '%s' is not owner/repository", ErrMalformedRepository, ref)
	}

	repo := &Repository{
		Owner: parts[0],
		Name:  strings.TrimSuffix(parts[1], ".git"),
		Ref:   defaultRef,
	}

	rest := parts[2:]
	switch {
	case len(rest) == 0:
	case len(rest) >= 2 && rest[0] == "tree":
		repo.Ref = strings.Join(rest[1:], "/")
	default:
		return nil, fmt.Errorf("%w: unexpected path '%s'", ErrMalformedRepository, strings.Join(rest, "/"))
	}

	if !repoSegment.MatchString(repo.Owner) || !repoSegment.MatchString(repo.Name) {
		return nil, fmt.Errorf("%w: '%s' is not owner/repository", ErrMalformedRepository, ref)
	}
	if len(repo.Ref) == 0 {
		repo.Ref = DefaultRef
	}

	return repo, nil
}

// ArchiveURL composes the codeload archive location for a repository.
func (r Repository) ArchiveURL(format string) string {
	ext := ".tar.gz"
	if format == FormatZipball {
		ext = ".zip"
	}
	return fmt.Sprintf("https://%s/%s/%s/archive/%s%s", githubHost, r.Owner, r.Name, r.Ref, ext)
}
