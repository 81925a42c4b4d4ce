// Package host defines the narrow interfaces the synchronization engine
// needs from the external package-management host. Everything the host does
// beyond these interfaces is out of the engine's scope.
//
// Unless stated otherwise, the host-backed implementations of these
// interfaces are only legal to call from the coordinating dispatcher (see
// Dispatcher); callers marshal onto it first.
package host

import (
	"context"

	"github.com/forgeide/pkgsync/internal/domain/project"
	"github.com/forgeide/pkgsync/internal/domain/sources"
)

// NativeID is the host's own identity for a project, distinct from the
// engine-level project.ID. Some projects have none (unsupported or unloaded).
type NativeID string

// PackageRef is one installed package as reported by the host.
type PackageRef struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// PackageQuery reads the authoritative installed-package list.
type PackageQuery interface {
	// InstalledPackages returns every installed package for a project.
	// Coordinating dispatcher only.
	InstalledPackages(ctx context.Context, id NativeID) ([]PackageRef, error)
}

// SolutionView exposes the host's view of the currently open solution.
type SolutionView interface {
	// CurrentProjects lists the projects currently open in the solution.
	CurrentProjects(ctx context.Context) ([]project.ID, error)

	// ResolveNativeID maps a project to the host's native identity. ok is
	// false when the project is unknown to the host or cannot be resolved.
	ResolveNativeID(ctx context.Context, id project.ID) (NativeID, bool)

	// ProjectLanguage reports the project's language. ok is false when the
	// host does not know the project or its language.
	ProjectLanguage(ctx context.Context, id project.ID) (Language, bool)
}

// SourceHost reads the configured package sources. Coordinating dispatcher
// only. Returns an error wrapping sources.ErrMalformedConfiguration when the
// host's source configuration cannot be parsed.
type SourceHost interface {
	Sources(ctx context.Context) ([]sources.Source, error)
}

// PackageManager installs and uninstalls packages through the host.
// Coordinating dispatcher only.
type PackageManager interface {
	Install(ctx context.Context, id NativeID, name, version string) error
	Uninstall(ctx context.Context, id NativeID, name string) error
}

// Dispatcher marshals work onto the coordinating goroutine, the single
// execution context the host requires for its authoritative calls. Do blocks
// the caller until fn has run there or ctx is cancelled.
type Dispatcher interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Severity classifies user-visible notifications.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// NotificationSink surfaces messages to a user-visible channel.
type NotificationSink interface {
	Report(ctx context.Context, message string, severity Severity)
}
