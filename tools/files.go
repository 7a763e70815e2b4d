package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mnemoworks/mnemo/core"
)

const accessDeniedMsg = "Access denied: Path is outside workspace directory"

// Workspace confines the file tools to one directory.
type Workspace struct {
	root string
}

// NewWorkspace anchors the file tools at root. The directory itself
// is created by the caller.
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// safePath joins name under the workspace root and rejects escapes:
// absolute names, lexical traversal (..), and symlinked parents.
func (w *Workspace) safePath(name string) (string, bool) {
	if filepath.IsAbs(name) {
		return "", false
	}
	target := filepath.Join(w.root, name)
	if target != w.root && !strings.HasPrefix(target, w.root+string(filepath.Separator)) {
		return "", false
	}

	resolved, err := resolveExisting(target)
	if err != nil {
		return target, true
	}
	rootResolved, err := filepath.EvalSymlinks(w.root)
	if err != nil {
		return target, true
	}
	if resolved != rootResolved && !strings.HasPrefix(resolved, rootResolved+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}

// resolveExisting resolves symlinks through the deepest existing
// ancestor of path, re-joining the not-yet-existing suffix.
func resolveExisting(path string) (string, error) {
	suffix := ""
	for p := path; ; {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		suffix = filepath.Join(filepath.Base(p), suffix)
		p = parent
	}
}

// ReadFile returns the tool that reads one workspace file.
func ReadFile(ws *Workspace) *Tool {
	return &Tool{
		Definition: core.ToolDefinition{
			Name:        "read_file",
			Description: "Read the contents of a file from the workspace directory",
			InputSchema: ObjectSchema(map[string]interface{}{
				"filename": StringProperty("The name of the file to read (relative to workspace)"),
			}, "filename"),
		},
		Describe: func(args map[string]interface{}) string {
			return fmt.Sprintf("read_file(%s)", stringArg(args, "filename"))
		},
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var in struct {
				Filename string `json:"filename"`
			}
			_ = json.Unmarshal(params.Input, &in)

			if in.Filename == "" {
				return errorResult("Error: Missing required argument 'filename'"), nil
			}

			path, ok := ws.safePath(in.Filename)
			if !ok {
				return errorResult(accessDeniedMsg), nil
			}

			info, err := os.Stat(path)
			if os.IsNotExist(err) {
				return errorResult(fmt.Sprintf("Error: File '%s' not found", in.Filename)), nil
			}
			if err != nil {
				return errorResult(fmt.Sprintf("Error reading file: %s", err)), nil
			}
			if !info.Mode().IsRegular() {
				return errorResult(fmt.Sprintf("Error: '%s' is not a file", in.Filename)), nil
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return errorResult(fmt.Sprintf("Error reading file: %s", err)), nil
			}
			return &core.ToolResult{Observation: string(content)}, nil
		},
	}
}

// WriteFile returns the tool that writes one workspace file, creating
// parent directories as needed.
func WriteFile(ws *Workspace) *Tool {
	return &Tool{
		Definition: core.ToolDefinition{
			Name:        "write_file",
			Description: "Write content to a file in the workspace directory",
			InputSchema: ObjectSchema(map[string]interface{}{
				"filename": StringProperty("The name of the file to write (relative to workspace)"),
				"content":  StringProperty("The content to write to the file"),
			}, "filename", "content"),
		},
		Describe: func(args map[string]interface{}) string {
			return fmt.Sprintf("write_file(%s)", stringArg(args, "filename"))
		},
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var in struct {
				Filename string  `json:"filename"`
				Content  *string `json:"content"`
			}
			_ = json.Unmarshal(params.Input, &in)

			if in.Filename == "" {
				return errorResult("Error: Missing required argument 'filename'"), nil
			}
			if in.Content == nil {
				return errorResult("Error: Missing required argument 'content'"), nil
			}

			path, ok := ws.safePath(in.Filename)
			if !ok {
				return errorResult(accessDeniedMsg), nil
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return errorResult(fmt.Sprintf("Error writing file: %s", err)), nil
			}
			if err := os.WriteFile(path, []byte(*in.Content), 0o644); err != nil {
				return errorResult(fmt.Sprintf("Error writing file: %s", err)), nil
			}
			return &core.ToolResult{Observation: fmt.Sprintf("Successfully wrote to '%s'", in.Filename)}, nil
		},
	}
}

// ListFiles returns the tool that lists the workspace directory.
func ListFiles(ws *Workspace) *Tool {
	return &Tool{
		Definition: core.ToolDefinition{
			Name:        "list_files",
			Description: "List all files in the workspace directory",
			InputSchema: ObjectSchema(map[string]interface{}{}),
		},
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			entries, err := os.ReadDir(ws.root)
			if err != nil {
				if os.IsNotExist(err) {
					return errorResult(fmt.Sprintf("Workspace directory does not exist: %s", ws.root)), nil
				}
				return errorResult(fmt.Sprintf("Error listing files: %s", err)), nil
			}

			if len(entries) == 0 {
				return &core.ToolResult{Observation: "Workspace is empty"}, nil
			}

			var b strings.Builder
			b.WriteString("Files in workspace:")
			for _, entry := range entries {
				b.WriteString("\n  ")
				b.WriteString(entry.Name())
				if entry.IsDir() {
					b.WriteString("/")
				}
			}
			return &core.ToolResult{Observation: b.String()}, nil
		},
	}
}
