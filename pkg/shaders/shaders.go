// Package shaders holds the GLSL 1.20 programs used by GLObjects, canvases
// and annotations.
package shaders

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed glsl
var sources embed.FS

// Load returns the vertex and fragment source of the named program. A
// program may share its vertex shader with others through a file named
// <name>.vert or, failing that, common.vert.
func Load(name string) (vertex, fragment string, err error) {
	frag, err := sources.ReadFile(path.Join("glsl", name+".frag"))
	if err != nil {
		return "", "", fmt.Errorf("shaders: unknown program %q", name)
	}
	vert, err := sources.ReadFile(path.Join("glsl", name+".vert"))
	if err != nil {
		vert, err = sources.ReadFile(path.Join("glsl", "common.vert"))
		if err != nil {
			return "", "", err
		}
	}
	return string(vert), string(frag), nil
}

// Names returns the names of all programs, sorted.
func Names() []string {
	entries, _ := fs.ReadDir(sources, "glsl")
	var names []string
	for _, e := range entries {
		if n, ok := strings.CutSuffix(e.Name(), ".frag"); ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
