package model

// Note is a Markdown file of the vault. Path is vault-relative and slash
// separated; Title is the base name without extension.
type Note struct {
	Path    string
	Title   string
	Tags    []string
	Content string
}
