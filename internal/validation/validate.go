// Package validation checks container names and remote object paths before
// they are turned into filesystem paths.
//
// Container names are single path components. Remote paths may contain "/"
// separators so objects can be nested, but no component may be "..", and the
// resolved path must stay inside its container. Every container and object
// call site in fsbox goes through this package.
package validation

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tizianocitro/fsbox/pkg/fserrors"
)

// ValidateContainerName rejects empty names, "." and "..", NUL bytes and
// names containing a path separator.
func ValidateContainerName(name string) error {
	const op = "validateContainerName"

	if name == "" {
		return fserrors.Invalid(op, name, "container name cannot be empty")
	}
	if strings.ContainsRune(name, 0) {
		return fserrors.Invalid(op, name, "container name cannot contain NUL bytes")
	}
	if name == "." || name == ".." {
		return fserrors.Invalid(op, name, "container name cannot be a relative path component")
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, os.PathSeparator) {
		return fserrors.Invalid(op, name, "container name cannot contain path separators")
	}
	return nil
}

// ValidateRemotePath rejects empty or absolute paths, NUL bytes, a trailing
// separator and any ".." component. Separators of the host OS are treated as
// "/".
func ValidateRemotePath(remote string) error {
	const op = "validateRemotePath"

	if remote == "" {
		return fserrors.Invalid(op, remote, "object path cannot be empty")
	}
	if strings.ContainsRune(remote, 0) {
		return fserrors.Invalid(op, remote, "object path cannot contain NUL bytes")
	}

	slashed := ToSlash(remote)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(remote) || filepath.VolumeName(remote) != "" {
		return fserrors.Invalid(op, remote, "object path cannot be absolute")
	}
	if strings.HasSuffix(slashed, "/") {
		return fserrors.Invalid(op, remote, "object path cannot end with a separator")
	}
	if hasTraversal(slashed) {
		return fserrors.Invalid(op, remote, "object path cannot contain path traversal sequences")
	}
	if path.Clean(slashed) == "." {
		return fserrors.Invalid(op, remote, "object path cannot refer to the container itself")
	}
	return nil
}

// Validate checks a container name and, when remote is not empty, an object path.
func Validate(container, remote string) error {
	if err := ValidateContainerName(container); err != nil {
		return err
	}
	if remote == "" {
		return nil
	}
	return ValidateRemotePath(remote)
}

// CleanRemote returns the canonical slash-separated form of a valid remote path.
func CleanRemote(remote string) string {
	return path.Clean(ToSlash(remote))
}

// Resolve validates container and remote, joins them under root and verifies
// that the result is contained in root/container. remote may be empty to
// resolve the container directory itself.
func Resolve(root, container, remote string) (string, error) {
	if err := Validate(container, remote); err != nil {
		return "", err
	}

	base := filepath.Join(root, container)
	if remote == "" {
		return base, nil
	}

	full := filepath.Join(base, filepath.FromSlash(CleanRemote(remote)))
	if !Contains(base, full) {
		return "", fserrors.Invalid("resolve", remote, "object path escapes its container")
	}
	return full, nil
}

// Contains reports whether target is base or lies below it.
func Contains(base, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(target))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// ToSlash converts the host separator to "/". On systems where the separator
// already is "/" a backslash is an ordinary character.
func ToSlash(p string) string {
	if os.PathSeparator == '/' {
		return p
	}
	return strings.ReplaceAll(p, string(os.PathSeparator), "/")
}

func hasTraversal(slashed string) bool {
	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
