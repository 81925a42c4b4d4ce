package watch

import (
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeide/pkgsync/internal/domain/project"
	"github.com/forgeide/pkgsync/internal/host"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		event   fsnotify.Event
		want    host.ChangeEvent
		matched bool
	}{
		{
			name:    "solution write",
			event:   fsnotify.Event{Name: "/src/app/App.sln", Op: fsnotify.Write},
			want:    host.ChangeEvent{Kind: host.EventSolutionChanged},
			matched: true,
		},
		{
			name:    "project write",
			event:   fsnotify.Event{Name: "/src/app/Web/Web.csproj", Op: fsnotify.Write},
			want:    host.ChangeEvent{Kind: host.EventProjectChanged, Project: "/src/app/Web/Web.csproj"},
			matched: true,
		},
		{
			name:    "project create",
			event:   fsnotify.Event{Name: "/src/app/Core/Core.fsproj", Op: fsnotify.Create},
			want:    host.ChangeEvent{Kind: host.EventProjectAdded, Project: "/src/app/Core/Core.fsproj"},
			matched: true,
		},
		{
			name:    "project remove",
			event:   fsnotify.Event{Name: "/src/app/Old/Old.vbproj", Op: fsnotify.Remove},
			want:    host.ChangeEvent{Kind: host.EventProjectRemoved, Project: "/src/app/Old/Old.vbproj"},
			matched: true,
		},
		{
			name:    "packages manifest",
			event:   fsnotify.Event{Name: filepath.Join("/src/app/Web", "packages.config"), Op: fsnotify.Write},
			want:    host.ChangeEvent{Kind: host.EventProjectChanged, Project: project.ID("/src/app/Web")},
			matched: true,
		},
		{
			name:    "unrelated file",
			event:   fsnotify.Event{Name: "/src/app/readme.md", Op: fsnotify.Write},
			matched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classify(tt.event)
			require.Equal(t, tt.matched, ok)
			if tt.matched {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
