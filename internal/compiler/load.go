package compiler

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/cascade/internal/ir"
)

// Loaded is a compiled workflow together with the source it came from.
type Loaded struct {
	Workflow *ir.Workflow
	Path     string
	Source   []byte // Raw source; CUE packages concatenate their files
	Hash     string // ir.WorkflowHash of Source
}

// LoadWorkflow reads and compiles a workflow file. The format follows the
// extension: .yaml/.yml for YAML, .cue for CUE. A directory is loaded as a
// CUE package.
func LoadWorkflow(path string) (*Loaded, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}
	if info.IsDir() {
		return loadCUEPackage(path)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}

	var wf *ir.Workflow
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		wf, err = CompileYAML(src, path)
	case ".cue":
		wf, err = CompileCUEBytes(src, path)
	default:
		return nil, fmt.Errorf("load workflow: unsupported file extension %q (want .yaml, .yml or .cue)", ext)
	}
	if err != nil {
		return nil, err
	}
	return &Loaded{Workflow: wf, Path: path, Source: src, Hash: ir.WorkflowHash(src)}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func loadCUEPackage(dir string) (*Loaded, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("load workflow: scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("load workflow: no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("load workflow: no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load workflow: loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	wf, err := CompileCUE(value)
	if err != nil {
		return nil, err
	}

	var src bytes.Buffer
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("load workflow: %w", err)
		}
		src.Write(data)
		src.WriteByte(0)
	}
	return &Loaded{Workflow: wf, Path: dir, Source: src.Bytes(), Hash: ir.WorkflowHash(src.Bytes())}, nil
}
